package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dendrascience/transfs/api"
	"github.com/dendrascience/transfs/overlay"
	"github.com/dendrascience/transfs/store"
	"github.com/dendrascience/transfs/translation"
	"github.com/dendrascience/transfs/version"
)

type mountOptions struct {
	contentRoot    string
	listen         string
	backupInterval time.Duration
	backupKeep     int
	backupOnRemove bool
	readOnly       bool
	allowOther     bool
	attrTimeout    time.Duration
}

// NewMountCmd creates and returns the mount subcommand for the transfs CLI.
// It mounts the overlay and serves the control interface until interrupted.
func NewMountCmd() *cobra.Command {
	var opts mountOptions

	cmd := &cobra.Command{
		Use:   "mount MOUNTPOINT ORIGINAL_ROOT DB_FILE BACKUP_DIR",
		Short: "Mount the translation overlay",
		Long: `Mount the translation overlay at MOUNTPOINT.

MOUNTPOINT is the directory where the overlay will be mounted.
ORIGINAL_ROOT is the tree served for every path without a translation.
DB_FILE is the translation table; it is created if missing and checked for
corruption before anything is mounted.
BACKUP_DIR receives periodic snapshots of DB_FILE.

Translated paths in the table are resolved below --content-root.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMount(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.contentRoot, "content-root", "/", "Root of the translated-content tree")
	cmd.Flags().StringVarP(&opts.listen, "listen", "l", "0.0.0.0:6000", "Address of the HTTP control interface")
	cmd.Flags().DurationVar(&opts.backupInterval, "backup-interval", time.Hour, "Interval between table backups, 0 to disable")
	cmd.Flags().IntVar(&opts.backupKeep, "backup-keep", 24, "Number of backups to keep, 0 keeps all")
	cmd.Flags().BoolVar(&opts.backupOnRemove, "backup-on-remove", true, "Back up the table before every removal")
	cmd.Flags().BoolVar(&opts.readOnly, "read-only", false, "Reject every write to the mounted tree")
	cmd.Flags().BoolVar(&opts.allowOther, "allow-other", false, "Allow other users to access the mount")
	cmd.Flags().DurationVar(&opts.attrTimeout, "attr-timeout", time.Second, "Kernel cache lifetime of attributes and entries")

	return cmd
}

func runMount(ctx context.Context, args []string, opts mountOptions) error {
	var paths [4]string
	for i, p := range args {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("invalid path %q: %w", p, err)
		}
		paths[i] = abs
	}
	mountpoint, originalRoot, dbFile, backupDir := paths[0], paths[1], paths[2], paths[3]
	contentRoot, err := filepath.Abs(opts.contentRoot)
	if err != nil {
		return fmt.Errorf("invalid content root %q: %w", opts.contentRoot, err)
	}

	if fi, err := os.Stat(originalRoot); err != nil || !fi.IsDir() {
		return fmt.Errorf("original root %s is not a directory", originalRoot)
	}
	if err := checkMountpoint(mountpoint, originalRoot, contentRoot, filepath.Dir(dbFile), backupDir); err != nil {
		return err
	}

	logger := log.WithField("component", "mount")
	logger.WithField("version", version.GetFullVersion()).Info("transfs starting")

	st, err := store.Open(dbFile, store.Options{})
	if err != nil {
		return fmt.Errorf("refusing to mount: %w", err)
	}
	defer st.Close()

	m, err := translation.NewManager(st, translation.ManagerOptions{
		BackupDir:      backupDir,
		BackupKeep:     opts.backupKeep,
		BackupOnRemove: opts.backupOnRemove,
	})
	if err != nil {
		return err
	}
	sched := m.StartBackups(opts.backupInterval)
	defer sched.Stop()

	filesystem := overlay.New(m.Table(), overlay.HostBackends(originalRoot, contentRoot), overlay.Options{
		ReadOnly:    opts.readOnly,
		AttrTimeout: opts.attrTimeout,
	})

	mountOpts := []fuse.MountOption{
		fuse.FSName("transfs"),
		fuse.Subtype("transfs"),
	}
	if opts.allowOther {
		mountOpts = append(mountOpts, fuse.AllowOther())
	}
	if opts.readOnly {
		mountOpts = append(mountOpts, fuse.ReadOnly())
	}
	c, err := fuse.Mount(mountpoint, mountOpts...)
	if err != nil {
		return fmt.Errorf("failed to mount %s: %w", mountpoint, err)
	}
	defer c.Close()

	srv := &http.Server{
		Addr:              opts.listen,
		Handler:           api.NewServer(m),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		logger.WithField("listen", opts.listen).Info("control interface listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- fs.Serve(c, filesystem)
	}()

	logger.WithFields(log.Fields{
		"mountpoint":   mountpoint,
		"original":     originalRoot,
		"content_root": contentRoot,
		"table":        dbFile,
		"translations": m.Table().Len(),
	}).Info("overlay mounted")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	case err := <-httpErr:
		runErr = fmt.Errorf("control interface failed: %w", err)
	case err := <-serveErr:
		// unmounted from outside
		logger.Info("filesystem unmounted")
		serveErr <- err
	}
	// a second signal terminates the process
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("control interface shutdown failed")
	}
	if err := unmountAndWait(mountpoint, fuse.Unmount, serveErr, unmountGrace); err != nil && runErr == nil {
		runErr = err
	}

	logger.Info("shutdown complete")
	return runErr
}

// unmountGrace bounds the wait for the kernel to release a busy mount.
const unmountGrace = 30 * time.Second

// unmountAndWait unmounts mountpoint and waits for the serve loop to return.
// A mount that stays busy is reported after grace instead of blocking
// shutdown.
func unmountAndWait(mountpoint string, unmount func(string) error, serveErr <-chan error, grace time.Duration) error {
	served := func(err error) error {
		if err != nil {
			return fmt.Errorf("serving filesystem: %w", err)
		}
		return nil
	}

	if uerr := unmount(mountpoint); uerr != nil {
		select {
		case err := <-serveErr:
			// already unmounted from outside
			return served(err)
		default:
		}
		log.WithField("component", "mount").WithError(uerr).
			Warnf("unmount failed, waiting %s; try 'fusermount -u -z %s'", grace, mountpoint)
	}
	select {
	case err := <-serveErr:
		return served(err)
	case <-time.After(grace):
		return fmt.Errorf("mount point %s is still busy, unmount it with 'fusermount -u -z %s'", mountpoint, mountpoint)
	}
}

// checkMountpoint refuses a mount point that would contain, or be contained
// in, any of the trees the overlay reads from or writes to.
func checkMountpoint(mountpoint string, others ...string) error {
	for _, p := range others {
		// the default content root is the whole host
		if p == "/" {
			continue
		}
		if pathsOverlap(mountpoint, p) {
			return fmt.Errorf("mount point %s overlaps %s", mountpoint, p)
		}
	}
	return nil
}

// pathsOverlap reports whether one path is equal to or inside the other.
func pathsOverlap(path1, path2 string) bool {
	path1, path2 = filepath.Clean(path1), filepath.Clean(path2)
	return path1 == path2 || within(path1, path2) || within(path2, path1)
}

func within(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

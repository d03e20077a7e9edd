package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"
)

const (
	// BackupPrefix and BackupSuffix delimit backup file names:
	// translations-20060102-150405.000-1a2b3c4d.db
	BackupPrefix = "translations-"
	BackupSuffix = ".db"

	backupTimeFormat = "20060102-150405.000"
)

// Backup writes a point-in-time copy of the table into dir and returns the
// path of the new file. The copy is taken from a read transaction, so it holds
// exactly the entries committed when the backup started and never blocks
// concurrent Upsert or Remove calls. The file appears under its final name
// only once it is complete and synced.
func (s *Store) Backup(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s%s-%s%s", BackupPrefix, time.Now().UTC().Format(backupTimeFormat), uuid.NewString()[:8], BackupSuffix)
	final := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".backup-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	var n int64
	err = s.db.View(func(tx *bolt.Tx) error {
		var werr error
		n, werr = tx.WriteTo(tmp)
		return werr
	})
	if err != nil {
		cleanup()
		return "", fmt.Errorf("failed to copy translation table: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to sync backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close backup: %w", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize backup: %w", err)
	}

	logger.WithField("backup", final).WithField("bytes", n).Info("created backup of translation table")
	return final, nil
}

// ListBackups returns the backup files in dir, oldest first.
func ListBackups(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, BackupPrefix) || !strings.HasSuffix(name, BackupSuffix) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	// the timestamp is fixed width, so name order is age order
	sort.Strings(out)
	return out, nil
}

// PruneBackups removes the oldest backups in dir so that at most keep remain.
// A keep of zero or less disables pruning.
func PruneBackups(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	backups, err := ListBackups(dir)
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}
	stale := backups[:len(backups)-keep]
	for _, p := range stale {
		logger.WithField("backup", p).Debug("removing old backup")
		if err := os.Remove(p); err != nil {
			return nil, fmt.Errorf("failed to remove old backup %s: %w", p, err)
		}
	}
	return stale, nil
}

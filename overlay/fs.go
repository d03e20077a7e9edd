package overlay

import (
	"os"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var logger = log.WithField("component", "overlay")

// Resolver answers translation queries. *table.Table implements it.
type Resolver interface {
	Resolve(virtualPath string) (string, bool)
	IsDir(virtualPath string) bool
	Children(dir string) []string
}

// Backends are the two trees the overlay serves from. A virtual path is
// looked up unchanged in Original; a real path from the table is looked up
// unchanged in Translated.
type Backends struct {
	Original   afero.Fs
	Translated afero.Fs
}

// HostBackends returns backends rooted at directories of the host
// filesystem.
func HostBackends(originalRoot, contentRoot string) Backends {
	return Backends{
		Original:   afero.NewBasePathFs(afero.NewOsFs(), originalRoot),
		Translated: afero.NewBasePathFs(afero.NewOsFs(), contentRoot),
	}
}

// Options configures an overlay.
type Options struct {
	ReadOnly    bool
	AttrTimeout time.Duration // kernel cache lifetime of attributes and entries
}

// FS is the overlay filesystem.
type FS struct {
	resolver   Resolver
	original   afero.Fs
	translated afero.Fs
	opts       Options

	uid, gid uint32
	started  time.Time
}

var _ fs.FS = (*FS)(nil)

// New returns an overlay serving backends through resolver.
func New(resolver Resolver, backends Backends, opts Options) *FS {
	if opts.AttrTimeout == 0 {
		opts.AttrTimeout = time.Second
	}
	return &FS{
		resolver:   resolver,
		original:   backends.Original,
		translated: backends.Translated,
		opts:       opts,
		uid:        uint32(os.Getuid()),
		gid:        uint32(os.Getgid()),
		started:    time.Now(),
	}
}

// Root returns the root directory node.
func (f *FS) Root() (fs.Node, error) {
	return &Dir{fs: f, path: "/"}, nil
}

type targetKind int

const (
	passthrough targetKind = iota
	translated
)

// target is where a filesystem call on a virtual path is carried out.
type target struct {
	kind targetKind
	path string
}

func (t target) String() string {
	if t.kind == translated {
		return "translated:" + t.path
	}
	return "original:" + t.path
}

func (f *FS) resolve(virtualPath string) target {
	// the mount root is always the original root directory
	if virtualPath == "/" {
		return target{kind: passthrough, path: virtualPath}
	}
	if r, ok := f.resolver.Resolve(virtualPath); ok {
		return target{kind: translated, path: r}
	}
	return target{kind: passthrough, path: virtualPath}
}

func (f *FS) backend(t target) afero.Fs {
	if t.kind == translated {
		return f.translated
	}
	return f.original
}

func (f *FS) stat(t target) (os.FileInfo, error) {
	return f.backend(t).Stat(t.path)
}

// node returns the node for virtualPath, or the error from the tree it
// resolves to. Directories implied by the table exist even when no tree has
// them.
func (f *FS) node(virtualPath string) (fs.Node, error) {
	t := f.resolve(virtualPath)
	fi, err := f.stat(t)
	if err != nil {
		if f.resolver.IsDir(virtualPath) {
			return &Dir{fs: f, path: virtualPath}, nil
		}
		logger.WithField("path", virtualPath).WithField("target", t).Trace("lookup failed")
		return nil, toErrno(err)
	}
	if fi.IsDir() {
		return &Dir{fs: f, path: virtualPath}, nil
	}
	return &File{fs: f, path: virtualPath}, nil
}

func (f *FS) fillAttr(a *fuse.Attr, fi os.FileInfo) {
	a.Valid = f.opts.AttrTimeout
	a.Mode = fi.Mode()
	a.Size = uint64(fi.Size())
	a.Mtime = fi.ModTime()
	a.Atime = a.Mtime
	a.Ctime = a.Mtime
	a.Nlink = 1
	if fi.IsDir() {
		a.Nlink = 2
	}
	a.Uid = f.uid
	a.Gid = f.gid
	a.BlockSize = 4096
	a.Blocks = (a.Size + 511) / 512
	// host-backed trees carry the real ownership and times
	sysAttr(a, fi)
}

func (f *FS) virtualDirAttr(a *fuse.Attr) {
	a.Valid = f.opts.AttrTimeout
	a.Mode = os.ModeDir | 0o755
	a.Nlink = 2
	a.Mtime = f.started
	a.Atime = f.started
	a.Ctime = f.started
	a.Uid = f.uid
	a.Gid = f.gid
	a.BlockSize = 4096
}

// setattr applies req to the target of virtualPath and fills resp with the
// resulting attributes.
func (f *FS) setattr(virtualPath string, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if f.opts.ReadOnly {
		return toErrno(ErrReadOnly)
	}
	t := f.resolve(virtualPath)
	b := f.backend(t)
	logger.WithField("path", virtualPath).WithField("target", t).Debug("setattr")

	if req.Valid.Size() {
		fh, err := b.OpenFile(t.path, os.O_WRONLY, 0)
		if err != nil {
			return toErrno(err)
		}
		err = fh.Truncate(int64(req.Size))
		if cerr := fh.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return toErrno(err)
		}
	}
	if req.Valid.Mode() {
		if err := b.Chmod(t.path, req.Mode); err != nil {
			return toErrno(err)
		}
	}
	if req.Valid.Uid() || req.Valid.Gid() {
		uid, gid := -1, -1
		if req.Valid.Uid() {
			uid = int(req.Uid)
		}
		if req.Valid.Gid() {
			gid = int(req.Gid)
		}
		if err := b.Chown(t.path, uid, gid); err != nil {
			return toErrno(err)
		}
	}
	if req.Valid.Atime() || req.Valid.Mtime() {
		fi, err := b.Stat(t.path)
		if err != nil {
			return toErrno(err)
		}
		at, mt := fi.ModTime(), fi.ModTime()
		if req.Valid.Atime() {
			at = req.Atime
		}
		if req.Valid.Mtime() {
			mt = req.Mtime
		}
		if err := b.Chtimes(t.path, at, mt); err != nil {
			return toErrno(err)
		}
	}

	fi, err := b.Stat(t.path)
	if err != nil {
		return toErrno(err)
	}
	f.fillAttr(&resp.Attr, fi)
	return nil
}

package overlay

import (
	"context"
	"errors"
	"os"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/spf13/afero"

	"github.com/dendrascience/transfs/util"
)

// Dir is a directory in the virtual namespace.
type Dir struct {
	fs   *FS
	path string
}

var (
	_ fs.Node                = (*Dir)(nil)
	_ fs.NodeRequestLookuper = (*Dir)(nil)
	_ fs.HandleReadDirAller  = (*Dir)(nil)
	_ fs.NodeCreater         = (*Dir)(nil)
	_ fs.NodeMkdirer         = (*Dir)(nil)
	_ fs.NodeRemover         = (*Dir)(nil)
	_ fs.NodeRenamer         = (*Dir)(nil)
	_ fs.NodeSetattrer       = (*Dir)(nil)
	_ fs.NodeAccesser        = (*Dir)(nil)
)

func (d *Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	t := d.fs.resolve(d.path)
	fi, err := d.fs.stat(t)
	if err != nil {
		if d.fs.resolver.IsDir(d.path) {
			d.fs.virtualDirAttr(a)
			return nil
		}
		return toErrno(err)
	}
	d.fs.fillAttr(a, fi)
	return nil
}

func (d *Dir) Lookup(ctx context.Context, req *fuse.LookupRequest, resp *fuse.LookupResponse) (fs.Node, error) {
	child := util.JoinVirtual(d.path, req.Name)
	logger.WithField("path", child).Trace("lookup")
	n, err := d.fs.node(child)
	if err != nil {
		return nil, err
	}
	// translations change at runtime, keep kernel entry caching short
	resp.EntryValid = d.fs.opts.AttrTimeout
	return n, nil
}

// ReadDirAll lists the original directory at this path merged with the
// names the translation table places below it.
func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	var out []fuse.Dirent
	seen := make(map[string]bool)

	infos, err := afero.ReadDir(d.fs.original, d.path)
	if err != nil {
		// translated and virtual directories need not exist in the original tree
		_, mapped := d.fs.resolver.Resolve(d.path)
		if !errors.Is(err, os.ErrNotExist) || !(mapped || d.fs.resolver.IsDir(d.path)) {
			return nil, toErrno(err)
		}
	}
	for _, fi := range infos {
		out = append(out, fuse.Dirent{Name: fi.Name(), Type: d.direntType(fi.Name(), fi)})
		seen[fi.Name()] = true
	}

	for _, name := range d.fs.resolver.Children(d.path) {
		if seen[name] {
			continue
		}
		out = append(out, fuse.Dirent{Name: name, Type: d.direntType(name, nil)})
	}

	logger.WithField("path", d.path).WithField("entries", len(out)).Trace("readdir")
	return out, nil
}

// direntType reports the type Lookup gives name: translations and symlinks
// are followed, and table-only names are directories unless mapped to a
// file. fi is the unfollowed original entry, if any.
func (d *Dir) direntType(name string, fi os.FileInfo) fuse.DirentType {
	child := util.JoinVirtual(d.path, name)
	t := d.fs.resolve(child)
	if t.kind == passthrough && fi != nil && fi.Mode()&os.ModeSymlink == 0 {
		if fi.IsDir() {
			return fuse.DT_Dir
		}
		return fuse.DT_File
	}
	st, err := d.fs.stat(t)
	switch {
	case err == nil && st.IsDir():
		return fuse.DT_Dir
	case err == nil:
		return fuse.DT_File
	case d.fs.resolver.IsDir(child):
		return fuse.DT_Dir
	case fi != nil && fi.Mode()&os.ModeSymlink != 0:
		// dangling link
		return fuse.DT_Link
	default:
		return fuse.DT_File
	}
}

func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	if d.fs.opts.ReadOnly {
		return nil, nil, toErrno(ErrReadOnly)
	}
	child := util.JoinVirtual(d.path, req.Name)
	t := d.fs.resolve(child)
	logger.WithField("path", child).WithField("target", t).Debug("create")

	flags := int(req.Flags) &^ os.O_APPEND
	fh, err := d.fs.backend(t).OpenFile(t.path, flags|os.O_CREATE, req.Mode&^req.Umask)
	if err != nil {
		return nil, nil, toErrno(err)
	}
	fi, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, nil, toErrno(err)
	}

	d.fs.fillAttr(&resp.Attr, fi)
	resp.EntryValid = d.fs.opts.AttrTimeout
	resp.Flags |= fuse.OpenDirectIO
	return &File{fs: d.fs, path: child}, newHandle(fh, child, !req.Flags.IsReadOnly()), nil
}

func (d *Dir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fs.Node, error) {
	if d.fs.opts.ReadOnly {
		return nil, toErrno(ErrReadOnly)
	}
	child := util.JoinVirtual(d.path, req.Name)
	t := d.fs.resolve(child)
	logger.WithField("path", child).WithField("target", t).Debug("mkdir")

	if err := d.fs.backend(t).Mkdir(t.path, req.Mode&^req.Umask); err != nil {
		return nil, toErrno(err)
	}
	return &Dir{fs: d.fs, path: child}, nil
}

// Remove unlinks the file or removes the empty directory the child resolves
// to. The translation, if any, stays in place.
func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	if d.fs.opts.ReadOnly {
		return toErrno(ErrReadOnly)
	}
	child := util.JoinVirtual(d.path, req.Name)
	t := d.fs.resolve(child)
	b := d.fs.backend(t)
	logger.WithField("path", child).WithField("target", t).Debug("remove")

	fi, err := b.Stat(t.path)
	if err != nil {
		return toErrno(err)
	}
	switch {
	case req.Dir && !fi.IsDir():
		return fuse.Errno(syscall.ENOTDIR)
	case !req.Dir && fi.IsDir():
		return fuse.Errno(syscall.EISDIR)
	case req.Dir:
		entries, err := afero.ReadDir(b, t.path)
		if err != nil {
			return toErrno(err)
		}
		if len(entries) > 0 {
			return fuse.Errno(syscall.ENOTEMPTY)
		}
	}
	return toErrno(b.Remove(t.path))
}

// Rename moves the real file behind the old name to the real location of the
// new name. Both names must resolve into the same tree.
func (d *Dir) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fs.Node) error {
	if d.fs.opts.ReadOnly {
		return toErrno(ErrReadOnly)
	}
	nd, ok := newDir.(*Dir)
	if !ok {
		return fuse.Errno(syscall.ENOTDIR)
	}
	oldPath := util.JoinVirtual(d.path, req.OldName)
	newPath := util.JoinVirtual(nd.path, req.NewName)
	from, to := d.fs.resolve(oldPath), d.fs.resolve(newPath)
	logger.WithField("from", from).WithField("to", to).Debug("rename")

	if from.kind != to.kind {
		return toErrno(ErrCrossTree)
	}
	return toErrno(d.fs.backend(from).Rename(from.path, to.path))
}

func (d *Dir) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	return d.fs.setattr(d.path, req, resp)
}

func (d *Dir) Access(ctx context.Context, req *fuse.AccessRequest) error {
	return d.fs.access(d.path, req.Mask)
}

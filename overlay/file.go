package overlay

import (
	"context"
	"os"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
)

// File is a regular file in the virtual namespace.
type File struct {
	fs   *FS
	path string
}

var (
	_ fs.Node          = (*File)(nil)
	_ fs.NodeOpener    = (*File)(nil)
	_ fs.NodeSetattrer = (*File)(nil)
	_ fs.NodeFsyncer   = (*File)(nil)
	_ fs.NodeAccesser  = (*File)(nil)
)

func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	t := f.fs.resolve(f.path)
	fi, err := f.fs.stat(t)
	if err != nil {
		// a mapping to a missing real path surfaces as that path's error
		logger.WithField("path", f.path).WithField("target", t).WithError(err).Debug("attr failed")
		return toErrno(err)
	}
	f.fs.fillAttr(a, fi)
	return nil
}

// Open opens the file the path resolves to now. The handle stays bound to
// that file even if the translation changes while it is open.
func (f *File) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	writable := !req.Flags.IsReadOnly()
	if writable && f.fs.opts.ReadOnly {
		return nil, toErrno(ErrReadOnly)
	}
	t := f.fs.resolve(f.path)
	logger.WithField("path", f.path).WithField("target", t).WithField("flags", req.Flags).Debug("open")

	// the kernel supplies the offset of every write, including appends
	flags := int(req.Flags) &^ (os.O_APPEND | os.O_CREATE | os.O_EXCL)
	fh, err := f.fs.backend(t).OpenFile(t.path, flags, 0)
	if err != nil {
		return nil, toErrno(err)
	}

	resp.Flags |= fuse.OpenDirectIO
	return newHandle(fh, f.path, writable), nil
}

func (f *File) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	return f.fs.setattr(f.path, req, resp)
}

func (f *File) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	t := f.fs.resolve(f.path)
	fh, err := f.fs.backend(t).Open(t.path)
	if err != nil {
		return toErrno(err)
	}
	defer fh.Close()
	return toErrno(fh.Sync())
}

func (f *File) Access(ctx context.Context, req *fuse.AccessRequest) error {
	return f.fs.access(f.path, req.Mask)
}

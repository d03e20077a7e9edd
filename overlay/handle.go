package overlay

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/spf13/afero"
)

// Handle is an open file on one of the backing trees.
type Handle struct {
	file     afero.File
	path     string // virtual path, for logging
	writable bool
	dirty    atomic.Bool
}

var (
	_ fs.Handle         = (*Handle)(nil)
	_ fs.HandleReader   = (*Handle)(nil)
	_ fs.HandleWriter   = (*Handle)(nil)
	_ fs.HandleFlusher  = (*Handle)(nil)
	_ fs.HandleReleaser = (*Handle)(nil)
)

func newHandle(file afero.File, path string, writable bool) *Handle {
	return &Handle{file: file, path: path, writable: writable}
}

func (h *Handle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	buf := make([]byte, req.Size)
	n, err := h.file.ReadAt(buf, req.Offset)
	if err != nil && !errors.Is(err, io.EOF) {
		logger.WithField("path", h.path).WithError(err).Warn("read failed")
		return toErrno(err)
	}
	resp.Data = buf[:n]
	return nil
}

func (h *Handle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	n, err := h.file.WriteAt(req.Data, req.Offset)
	resp.Size = n
	if err != nil {
		logger.WithField("path", h.path).WithError(err).Warn("write failed")
		return toErrno(err)
	}
	h.dirty.Store(true)
	return nil
}

// Flush syncs data written through this handle. It runs on every close of a
// file descriptor sharing the handle.
func (h *Handle) Flush(ctx context.Context, req *fuse.FlushRequest) error {
	if !h.writable || !h.dirty.Swap(false) {
		return nil
	}
	return toErrno(h.file.Sync())
}

func (h *Handle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	logger.WithField("path", h.path).Trace("release")
	return toErrno(h.file.Close())
}

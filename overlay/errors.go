package overlay

import (
	"errors"
	"os"
	"syscall"

	"bazil.org/fuse"
)

var (
	// ErrCrossTree is returned for renames between a translated and an
	// untranslated path.
	ErrCrossTree = errors.New("rename across original and translated trees")
	// ErrReadOnly is returned by every mutating call on a read-only mount.
	ErrReadOnly = errors.New("overlay is mounted read-only")
)

// toErrno converts err into the errno reported to the kernel. Errors that
// already carry an errno, such as those from the host filesystem, are passed
// through untouched.
func toErrno(err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return fuse.Errno(errno)
	}

	switch {
	case errors.Is(err, ErrCrossTree):
		return fuse.Errno(syscall.EXDEV)
	case errors.Is(err, ErrReadOnly):
		return fuse.Errno(syscall.EROFS)
	case errors.Is(err, os.ErrNotExist):
		return fuse.Errno(syscall.ENOENT)
	case errors.Is(err, os.ErrPermission):
		return fuse.Errno(syscall.EACCES)
	case errors.Is(err, os.ErrExist):
		return fuse.Errno(syscall.EEXIST)
	default:
		logger.WithError(err).Debug("unmapped error, returning EIO")
		return fuse.Errno(syscall.EIO)
	}
}

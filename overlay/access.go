package overlay

import (
	"golang.org/x/sys/unix"
)

// realPather is implemented by afero.BasePathFs.
type realPather interface {
	RealPath(name string) (string, error)
}

// access checks mask against the file the path resolves to. Trees backed by
// the host filesystem are checked with access(2); other trees only need the
// file to exist.
func (f *FS) access(virtualPath string, mask uint32) error {
	if f.opts.ReadOnly && mask&unix.W_OK != 0 {
		return toErrno(ErrReadOnly)
	}
	t := f.resolve(virtualPath)
	b := f.backend(t)

	if _, err := b.Stat(t.path); err != nil {
		if t.kind == passthrough && f.resolver.IsDir(virtualPath) {
			return nil
		}
		return toErrno(err)
	}

	rp, ok := b.(realPather)
	if !ok {
		return nil
	}
	host, err := rp.RealPath(t.path)
	if err != nil {
		return toErrno(err)
	}
	return toErrno(unix.Access(host, mask))
}

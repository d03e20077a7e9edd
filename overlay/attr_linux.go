//go:build linux

package overlay

import (
	"os"
	"syscall"
	"time"

	"bazil.org/fuse"
)

func sysAttr(a *fuse.Attr, fi os.FileInfo) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	a.Nlink = uint32(st.Nlink)
	a.Uid = st.Uid
	a.Gid = st.Gid
	a.Rdev = uint32(st.Rdev)
	a.Blocks = uint64(st.Blocks)
	a.Atime = time.Unix(int64(st.Atim.Sec), int64(st.Atim.Nsec))
	a.Ctime = time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec))
}

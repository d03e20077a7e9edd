package overlay

import (
	"context"
	"os"
	"strings"
	"syscall"
	"testing"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/spf13/afero"

	"github.com/dendrascience/transfs/store"
	"github.com/dendrascience/transfs/table"
)

type testFS struct {
	fs         *FS
	table      *table.Table
	original   afero.Fs
	translated afero.Fs
}

func setupTestFS(t *testing.T, opts Options, entries ...store.Entry) *testFS {
	t.Helper()
	tfs := &testFS{
		table:      table.New(entries),
		original:   afero.NewMemMapFs(),
		translated: afero.NewMemMapFs(),
	}
	tfs.fs = New(tfs.table, Backends{Original: tfs.original, Translated: tfs.translated}, opts)
	return tfs
}

func writeFile(t *testing.T, fsys afero.Fs, name, content string) {
	t.Helper()
	if err := afero.WriteFile(fsys, name, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

// walk looks up p component by component from the root, the way the kernel
// does.
func walk(t *testing.T, f *FS, p string) (fs.Node, error) {
	t.Helper()
	n, err := f.Root()
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}
	for _, name := range strings.Split(strings.Trim(p, "/"), "/") {
		if name == "" {
			continue
		}
		d, ok := n.(*Dir)
		if !ok {
			return nil, fuse.Errno(syscall.ENOTDIR)
		}
		n, err = d.Lookup(context.Background(), &fuse.LookupRequest{Name: name}, &fuse.LookupResponse{})
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

func mustWalk(t *testing.T, f *FS, p string) fs.Node {
	t.Helper()
	n, err := walk(t, f, p)
	if err != nil {
		t.Fatalf("lookup %s failed: %v", p, err)
	}
	return n
}

func readAll(t *testing.T, n fs.Node) (string, error) {
	t.Helper()
	file, ok := n.(*File)
	if !ok {
		t.Fatalf("node %T is not a file", n)
	}
	ctx := context.Background()
	h, err := file.Open(ctx, &fuse.OpenRequest{Flags: fuse.OpenReadOnly}, &fuse.OpenResponse{})
	if err != nil {
		return "", err
	}
	defer h.(*Handle).Release(ctx, &fuse.ReleaseRequest{})

	resp := &fuse.ReadResponse{}
	if err := h.(*Handle).Read(ctx, &fuse.ReadRequest{Offset: 0, Size: 4096}, resp); err != nil {
		return "", err
	}
	return string(resp.Data), nil
}

func wantErrno(t *testing.T, err error, want syscall.Errno) {
	t.Helper()
	if err != fuse.Errno(want) {
		t.Errorf("error = %v, want %v", err, want)
	}
}

func TestPassthrough(t *testing.T) {
	tfs := setupTestFS(t, Options{})
	writeFile(t, tfs.original, "/documents/english/hello.txt", "hello")

	got, err := readAll(t, mustWalk(t, tfs.fs, "/documents/english/hello.txt"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got != "hello" {
		t.Errorf("content = %q, want %q", got, "hello")
	}

	_, err = walk(t, tfs.fs, "/documents/english/missing.txt")
	wantErrno(t, err, syscall.ENOENT)
}

func TestTranslatedRead(t *testing.T) {
	tfs := setupTestFS(t, Options{},
		store.Entry{Original: "/documents/english/hello.txt", Translated: "/documents/spanish/hola.txt"})
	writeFile(t, tfs.original, "/documents/english/hello.txt", "hello")
	writeFile(t, tfs.translated, "/documents/spanish/hola.txt", "hola")

	got, err := readAll(t, mustWalk(t, tfs.fs, "/documents/english/hello.txt"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got != "hola" {
		t.Errorf("content = %q, want %q", got, "hola")
	}

	var a fuse.Attr
	if err := mustWalk(t, tfs.fs, "/documents/english/hello.txt").Attr(context.Background(), &a); err != nil {
		t.Fatalf("Attr failed: %v", err)
	}
	if a.Size != 4 {
		t.Errorf("size = %d, want 4 (size of the translated file)", a.Size)
	}
}

// A node looked up before a translation change must follow the change.
func TestTranslationChangeVisibleToExistingNodes(t *testing.T) {
	tfs := setupTestFS(t, Options{})
	writeFile(t, tfs.original, "/doc.txt", "original")
	writeFile(t, tfs.translated, "/t/doc.txt", "translated")

	n := mustWalk(t, tfs.fs, "/doc.txt")

	tests := []struct {
		name   string
		change func()
		want   string
	}{
		{name: "before", change: func() {}, want: "original"},
		{name: "after add", change: func() { tfs.table.Upsert("/doc.txt", "/t/doc.txt") }, want: "translated"},
		{name: "after remove", change: func() { tfs.table.Remove("/doc.txt") }, want: "original"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.change()
			got, err := readAll(t, n)
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("content = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRemovedTranslationWithoutOriginal(t *testing.T) {
	tfs := setupTestFS(t, Options{}, store.Entry{Original: "/only/virtual.txt", Translated: "/t/v.txt"})
	writeFile(t, tfs.translated, "/t/v.txt", "v")

	if _, err := walk(t, tfs.fs, "/only/virtual.txt"); err != nil {
		t.Fatalf("lookup of translated path failed: %v", err)
	}

	tfs.table.Remove("/only/virtual.txt")
	_, err := walk(t, tfs.fs, "/only/virtual.txt")
	wantErrno(t, err, syscall.ENOENT)
}

func TestMissingRealPath(t *testing.T) {
	tfs := setupTestFS(t, Options{}, store.Entry{Original: "/a.txt", Translated: "/t/not-yet.txt"})
	writeFile(t, tfs.original, "/a.txt", "original")

	n := &File{fs: tfs.fs, path: "/a.txt"}
	wantErrno(t, n.Attr(context.Background(), &fuse.Attr{}), syscall.ENOENT)
	_, err := n.Open(context.Background(), &fuse.OpenRequest{Flags: fuse.OpenReadOnly}, &fuse.OpenResponse{})
	wantErrno(t, err, syscall.ENOENT)

	// content appearing later is served without touching the mapping
	writeFile(t, tfs.translated, "/t/not-yet.txt", "late")
	got, err := readAll(t, n)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got != "late" {
		t.Errorf("content = %q, want %q", got, "late")
	}
}

func TestReadDirAll(t *testing.T) {
	tfs := setupTestFS(t, Options{},
		store.Entry{Original: "/docs/b.txt", Translated: "/t/b.txt"},
		store.Entry{Original: "/docs/a.txt", Translated: "/t/a.txt"},
		store.Entry{Original: "/virtual/deep/c.txt", Translated: "/t/c.txt"},
	)
	writeFile(t, tfs.original, "/docs/a.txt", "a")
	writeFile(t, tfs.original, "/top.txt", "top")
	writeFile(t, tfs.translated, "/t/c.txt", "c")

	tests := []struct {
		dir  string
		want map[string]fuse.DirentType
	}{
		{dir: "/", want: map[string]fuse.DirentType{"docs": fuse.DT_Dir, "top.txt": fuse.DT_File, "virtual": fuse.DT_Dir}},
		{dir: "/docs", want: map[string]fuse.DirentType{"a.txt": fuse.DT_File, "b.txt": fuse.DT_File}},
		{dir: "/virtual", want: map[string]fuse.DirentType{"deep": fuse.DT_Dir}},
		{dir: "/virtual/deep", want: map[string]fuse.DirentType{"c.txt": fuse.DT_File}},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			d, ok := mustWalk(t, tfs.fs, tt.dir).(*Dir)
			if !ok {
				t.Fatalf("%s is not a directory", tt.dir)
			}
			entries, err := d.ReadDirAll(context.Background())
			if err != nil {
				t.Fatalf("ReadDirAll failed: %v", err)
			}
			got := make(map[string]fuse.DirentType)
			for _, e := range entries {
				if _, dup := got[e.Name]; dup {
					t.Errorf("duplicate entry %q", e.Name)
				}
				got[e.Name] = e.Type
			}
			if len(got) != len(tt.want) {
				t.Errorf("entries = %v, want %v", got, tt.want)
			}
			for name, typ := range tt.want {
				if got[name] != typ {
					t.Errorf("entry %q type = %v, want %v", name, got[name], typ)
				}
			}
		})
	}
}

func TestVirtualDirAttr(t *testing.T) {
	tfs := setupTestFS(t, Options{}, store.Entry{Original: "/virtual/c.txt", Translated: "/t/c.txt"})

	var a fuse.Attr
	if err := mustWalk(t, tfs.fs, "/virtual").Attr(context.Background(), &a); err != nil {
		t.Fatalf("Attr failed: %v", err)
	}
	if a.Mode != os.ModeDir|0o755 {
		t.Errorf("mode = %v, want %v", a.Mode, os.ModeDir|0o755)
	}

	tfs.table.Remove("/virtual/c.txt")
	d := &Dir{fs: tfs.fs, path: "/virtual"}
	wantErrno(t, d.Attr(context.Background(), &fuse.Attr{}), syscall.ENOENT)
}

func TestRootIgnoresTranslation(t *testing.T) {
	tfs := setupTestFS(t, Options{}, store.Entry{Original: "/", Translated: "/f.txt"})
	writeFile(t, tfs.translated, "/f.txt", "file")
	writeFile(t, tfs.original, "/a.txt", "a")

	root, _ := tfs.fs.Root()
	var a fuse.Attr
	if err := root.Attr(context.Background(), &a); err != nil {
		t.Fatalf("Attr failed: %v", err)
	}
	if !a.Mode.IsDir() {
		t.Errorf("root mode = %v, want a directory", a.Mode)
	}
	if got, err := readAll(t, mustWalk(t, tfs.fs, "/a.txt")); err != nil || got != "a" {
		t.Errorf("read /a.txt = %q, %v", got, err)
	}
}

func TestAccess(t *testing.T) {
	tfs := setupTestFS(t, Options{}, store.Entry{Original: "/v/a.txt", Translated: "/t/missing.txt"})
	writeFile(t, tfs.original, "/b.txt", "b")
	ctx := context.Background()

	if err := (&File{fs: tfs.fs, path: "/b.txt"}).Access(ctx, &fuse.AccessRequest{Mask: 4}); err != nil {
		t.Errorf("Access on existing file failed: %v", err)
	}
	if err := (&Dir{fs: tfs.fs, path: "/v"}).Access(ctx, &fuse.AccessRequest{Mask: 4}); err != nil {
		t.Errorf("Access on virtual dir failed: %v", err)
	}
	wantErrno(t, (&File{fs: tfs.fs, path: "/v/a.txt"}).Access(ctx, &fuse.AccessRequest{Mask: 4}), syscall.ENOENT)
}

func TestToErrno(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want syscall.Errno
	}{
		{name: "not exist", err: &os.PathError{Op: "open", Path: "/x", Err: os.ErrNotExist}, want: syscall.ENOENT},
		{name: "permission", err: os.ErrPermission, want: syscall.EACCES},
		{name: "exist", err: os.ErrExist, want: syscall.EEXIST},
		{name: "host errno passes through", err: &os.PathError{Op: "open", Path: "/x", Err: syscall.ELOOP}, want: syscall.ELOOP},
		{name: "cross tree", err: ErrCrossTree, want: syscall.EXDEV},
		{name: "read-only", err: ErrReadOnly, want: syscall.EROFS},
		{name: "unknown", err: os.ErrClosed, want: syscall.EIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantErrno(t, toErrno(tt.err), tt.want)
		})
	}
	if toErrno(nil) != nil {
		t.Error("toErrno(nil) should be nil")
	}
}

package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// validTable writes a closed table file with three entries and returns its
// contents.
func validTable(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "translations.db")
	s, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for _, e := range []Entry{
		{Original: "/documents/english/hello.txt", Translated: "/documents/spanish/hola.txt"},
		{Original: "/documents/english/bye.txt", Translated: "/documents/spanish/adios.txt"},
		{Original: "/reports/q1.pdf", Translated: "/archive/q1-v2.pdf"},
	} {
		if err := s.Upsert(e.Original, e.Translated); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestVerifyFile_Valid(t *testing.T) {
	if err := verifyFile(validTable(t), os.Getpagesize()); err != nil {
		t.Fatalf("verifyFile on valid table: %v", err)
	}
}

// Every page of a valid file is overwritten in turn. Opening must either
// report ErrCorrupt or, for pages bolt never reads, succeed normally; it must
// never fault or hang.
func TestOpen_DamagedPage(t *testing.T) {
	data := validTable(t)
	pageSize := os.Getpagesize()
	pages := len(data) / pageSize

	corrupt := 0
	for i := 0; i < pages; i++ {
		for _, readOnly := range []bool{false, true} {
			t.Run(fmt.Sprintf("page %d read-only %v", i, readOnly), func(t *testing.T) {
				damaged := bytes.Clone(data)
				copy(damaged[i*pageSize:(i+1)*pageSize], bytes.Repeat([]byte{0xAB}, pageSize))
				path := filepath.Join(t.TempDir(), "translations.db")
				if err := os.WriteFile(path, damaged, 0o600); err != nil {
					t.Fatal(err)
				}

				s, err := Open(path, Options{ReadOnly: readOnly})
				if err != nil {
					if !errors.Is(err, ErrCorrupt) {
						t.Fatalf("Open error = %v, want ErrCorrupt", err)
					}
					corrupt++
					after, rerr := os.ReadFile(path)
					if rerr != nil {
						t.Fatal(rerr)
					}
					if !bytes.Equal(after, damaged) {
						t.Error("Open wrote to a corrupt table")
					}
					return
				}
				defer s.Close()
				if _, err := s.List(); err != nil {
					t.Errorf("List after successful Open: %v", err)
				}
			})
		}
	}
	// the meta, freelist and root pages are always live
	if corrupt == 0 {
		t.Fatal("no damaged page was reported as corrupt")
	}
}

func TestVerifyFile(t *testing.T) {
	pageSize := os.Getpagesize()
	data := validTable(t)

	tests := []struct {
		name   string
		damage func([]byte) []byte
	}{
		{"truncated", func(b []byte) []byte { return b[:100] }},
		{"both meta pages", func(b []byte) []byte {
			copy(b[pageHeaderSize:], make([]byte, metaSize))
			copy(b[pageSize+pageHeaderSize:], make([]byte, metaSize))
			return b
		}},
		{"cut below high water mark", func(b []byte) []byte { return b[:2*pageSize] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyFile(tt.damage(bytes.Clone(data)), pageSize); err == nil {
				t.Error("verifyFile accepted a damaged table")
			}
		})
	}
}

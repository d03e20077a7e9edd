package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dendrascience/transfs/store"
)

func writeTable(t *testing.T, path string, entries ...store.Entry) {
	t.Helper()
	st, err := store.Open(path, store.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.UpsertAll(entries); err != nil {
		t.Fatal(err)
	}
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	contentRoot := filepath.Join(dir, "content")
	if err := os.MkdirAll(filepath.Join(contentRoot, "x"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(contentRoot, "x", "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	dbFile := filepath.Join(dir, "translations.db")
	writeTable(t, dbFile,
		store.Entry{Original: "/a.txt", Translated: "/x/a.txt"},
		store.Entry{Original: "/b.txt", Translated: "/x/b.txt"},
		store.Entry{Original: "/c//d.txt", Translated: "relative"},
	)

	tests := []struct {
		name        string
		opts        validateOptions
		wantErrors  int
		wantMissing int
	}{
		{"table only", validateOptions{}, 2, 0},
		{"with content root", validateOptions{contentRoot: contentRoot, verbose: true}, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			report, err := runValidate(dbFile, tt.opts, &out)
			if err != nil {
				t.Fatalf("runValidate() error = %v", err)
			}
			if report.entries != 3 {
				t.Errorf("entries = %d, want 3", report.entries)
			}
			if len(report.errors) != tt.wantErrors {
				t.Errorf("errors = %v, want %d", report.errors, tt.wantErrors)
			}
			if len(report.missingTargets) != tt.wantMissing {
				t.Errorf("missingTargets = %v, want %d", report.missingTargets, tt.wantMissing)
			}
			if !strings.Contains(out.String(), "Validation complete") {
				t.Errorf("output missing summary: %q", out.String())
			}
		})
	}
}

func TestRunValidate_Corrupt(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "translations.db")
	if err := os.WriteFile(dbFile, bytes.Repeat([]byte{0xAB}, 8192), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := runValidate(dbFile, validateOptions{}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for corrupt table")
	}
}

func TestCheckEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry store.Entry
		want  int
	}{
		{"valid", store.Entry{Original: "/a", Translated: "/b"}, 0},
		{"unclean original", store.Entry{Original: "/a/", Translated: "/b"}, 1},
		{"relative translated", store.Entry{Original: "/a", Translated: "b"}, 1},
		{"both empty", store.Entry{}, 2},
		{"root original", store.Entry{Original: "/", Translated: "/b"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkEntry(tt.entry); len(got) != tt.want {
				t.Errorf("checkEntry() = %v, want %d problems", got, tt.want)
			}
		})
	}
}

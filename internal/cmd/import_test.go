package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dendrascience/transfs/store"
)

func TestParseImport(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []store.Entry
		wantErr bool
	}{
		{
			name:  "list document",
			input: `{"translations": [["/a.txt", "/x/a.txt"], ["/b/c.txt", "/y.txt"]]}`,
			want:  []store.Entry{{Original: "/a.txt", Translated: "/x/a.txt"}, {Original: "/b/c.txt", Translated: "/y.txt"}},
		},
		{
			name:  "entry array",
			input: `[{"original": "/a.txt", "translated": "/x/a.txt"}]`,
			want:  []store.Entry{{Original: "/a.txt", Translated: "/x/a.txt"}},
		},
		{
			name:  "paths are cleaned",
			input: `[{"original": "/a//b/../c.txt", "translated": "/x/./y.txt/"}]`,
			want:  []store.Entry{{Original: "/a/c.txt", Translated: "/x/y.txt"}},
		},
		{
			name:  "empty list",
			input: `{"translations": []}`,
		},
		{
			name:    "relative path",
			input:   `[{"original": "a.txt", "translated": "/x"}]`,
			wantErr: true,
		},
		{
			name:    "empty path",
			input:   `{"translations": [["/a", ""]]}`,
			wantErr: true,
		},
		{
			name:    "root original",
			input:   `{"translations": [["/", "/x/a.txt"]]}`,
			wantErr: true,
		},
		{
			name:    "not json",
			input:   `/a -> /b`,
			wantErr: true,
		},
		{
			name:    "wrong shape",
			input:   `"/a"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseImport(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseImport() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseImport() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseImport_ReportsAllErrors(t *testing.T) {
	_, err := parseImport(strings.NewReader(`[{"original": "a", "translated": "b"}, {"original": "/ok", "translated": ""}]`))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"entry 0 original", "entry 0 translated", "entry 1 translated"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestRunImport(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "translations.db")
	src := filepath.Join(dir, "import.json")
	doc := `{"translations": [["/a.txt", "/x/a.txt"], ["/b.txt", "/x/b.txt"]]}`
	if err := os.WriteFile(src, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("dry run", func(t *testing.T) {
		n, err := runImport(dbFile, src, true, false, nil, &bytes.Buffer{})
		if err != nil {
			t.Fatalf("runImport() error = %v", err)
		}
		if n != 2 {
			t.Errorf("runImport() = %d, want 2", n)
		}
		if _, err := os.Stat(dbFile); !os.IsNotExist(err) {
			t.Errorf("dry run created %s", dbFile)
		}
	})

	t.Run("file", func(t *testing.T) {
		var out bytes.Buffer
		n, err := runImport(dbFile, src, false, true, nil, &out)
		if err != nil {
			t.Fatalf("runImport() error = %v", err)
		}
		if n != 2 {
			t.Errorf("runImport() = %d, want 2", n)
		}
		if !strings.Contains(out.String(), "/a.txt -> /x/a.txt") {
			t.Errorf("verbose output missing entry: %q", out.String())
		}
	})

	t.Run("stdin", func(t *testing.T) {
		stdin := strings.NewReader(`[{"original": "/c.txt", "translated": "/x/c.txt"}]`)
		if _, err := runImport(dbFile, "-", false, false, stdin, &bytes.Buffer{}); err != nil {
			t.Fatalf("runImport() error = %v", err)
		}
	})

	st, err := store.Open(dbFile, store.Options{ReadOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	entries, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	want := []store.Entry{
		{Original: "/a.txt", Translated: "/x/a.txt"},
		{Original: "/b.txt", Translated: "/x/b.txt"},
		{Original: "/c.txt", Translated: "/x/c.txt"},
	}
	if len(entries) != len(want) {
		t.Fatalf("List() = %v, want %v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %v, want %v", i, entries[i], want[i])
		}
	}
}

func TestRunImport_InvalidWritesNothing(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "translations.db")
	stdin := strings.NewReader(`{"translations": [["/ok", "/x"], ["bad", "/y"]]}`)
	if _, err := runImport(dbFile, "-", false, false, stdin, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for invalid entry")
	}
	if _, err := os.Stat(dbFile); !os.IsNotExist(err) {
		t.Errorf("invalid import created %s", dbFile)
	}
}

package api

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/dendrascience/transfs/store"
)

func TestClient(t *testing.T) {
	srv, _ := setupServer(t)
	c := NewClient(srv.URL)
	ctx := context.Background()

	if err := c.Add(ctx, "/en/a.txt", "/es/a.txt"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := c.Add(ctx, "/en/b.txt", "/es/a.txt"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	entries, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []store.Entry{
		{Original: "/en/a.txt", Translated: "/es/a.txt"},
		{Original: "/en/b.txt", Translated: "/es/a.txt"},
	}
	if !slices.Equal(entries, want) {
		t.Errorf("List() = %v, want %v", entries, want)
	}

	got, err := c.Lookup(ctx, "/en/a.txt")
	if err != nil || got != "/es/a.txt" {
		t.Errorf("Lookup = (%q, %v)", got, err)
	}
	originals, err := c.Originals(ctx, "/es/a.txt")
	if err != nil || !slices.Equal(originals, []string{"/en/a.txt", "/en/b.txt"}) {
		t.Errorf("Originals = (%v, %v)", originals, err)
	}

	p, err := c.Backup(ctx)
	if err != nil || !strings.Contains(p, store.BackupPrefix) {
		t.Errorf("Backup = (%q, %v)", p, err)
	}

	if err := c.Remove(ctx, "/en/a.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	err = c.Remove(ctx, "/en/a.txt")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Remove error = %v, want store.ErrNotFound", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Message != "Translation not found" {
		t.Errorf("expected StatusError with server message, got %v", err)
	}

	h, err := c.Health(ctx)
	if err != nil || h.Translations != 1 {
		t.Errorf("Health = (%+v, %v)", h, err)
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{addr: "localhost:6000", want: "http://localhost:6000"},
		{addr: "http://127.0.0.1:6000/", want: "http://127.0.0.1:6000"},
		{addr: "https://example.com", want: "https://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := NewClient(tt.addr).BaseURL; got != tt.want {
				t.Errorf("BaseURL = %q, want %q", got, tt.want)
			}
		})
	}
}

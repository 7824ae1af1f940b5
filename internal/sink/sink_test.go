package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewDirSinkRequiresDir(t *testing.T) {
	if _, err := NewDirSink(""); err == nil {
		t.Fatalf("empty dir must be rejected")
	}
}

func TestDirSinkStoreAndOverwrite(t *testing.T) {
	dst := t.TempDir()
	src := filepath.Join(t.TempDir(), "events.log.20251029T170000.zip")
	if err := os.WriteFile(src, []byte("first"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	s, err := NewDirSink(dst)
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}
	if err := s.Store(context.Background(), src); err != nil {
		t.Fatalf("Store: %v", err)
	}
	stored := filepath.Join(dst, filepath.Base(src))
	if got, _ := os.ReadFile(stored); string(got) != "first" {
		t.Fatalf("stored content %q", got)
	}

	// A retry of the same archive overwrites, never errors.
	if err := os.WriteFile(src, []byte("second"), 0o644); err != nil {
		t.Fatalf("rewrite src: %v", err)
	}
	if err := s.Store(context.Background(), src); err != nil {
		t.Fatalf("retry Store: %v", err)
	}
	if got, _ := os.ReadFile(stored); string(got) != "second" {
		t.Fatalf("retry should overwrite, got %q", got)
	}

	// The temp file never lingers.
	entries, err := os.ReadDir(dst)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the stored archive, got %d entries", len(entries))
	}
}

func TestDirSinkStoreMissingSource(t *testing.T) {
	s, err := NewDirSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}
	if err := s.Store(context.Background(), filepath.Join(t.TempDir(), "gone.zip")); err == nil {
		t.Fatalf("missing source must error")
	}
}

func TestDirSinkStoreCanceledContext(t *testing.T) {
	s, err := NewDirSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Store(ctx, "whatever.zip"); err == nil {
		t.Fatalf("canceled context must error")
	}
}

package sink

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex(filepath.Join(t.TempDir(), "segments.db"))
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestIndexPendingOrder(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	base := time.Date(2025, 10, 29, 17, 0, 0, 0, time.UTC)

	if err := idx.Record(ctx, "/logs/b.zip", base.Add(time.Hour)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := idx.Record(ctx, "/logs/a.zip", base); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := idx.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	want := []string{"/logs/a.zip", "/logs/b.zip"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("pending = %v, want %v", got, want)
	}
}

func TestIndexMarkUploadedRemovesFromPending(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Record(ctx, "/logs/a.zip", time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := idx.MarkUploaded(ctx, "/logs/a.zip"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	got, err := idx.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("uploaded segment still pending: %v", got)
	}
}

func TestIndexRerecordResetsUploadState(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Record(ctx, "/logs/a.zip", time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := idx.MarkUploaded(ctx, "/logs/a.zip"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	// The same archive name got re-created; it must be pending again.
	if err := idx.Record(ctx, "/logs/a.zip", time.Now()); err != nil {
		t.Fatalf("re-record: %v", err)
	}
	got, err := idx.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("re-recorded segment must be pending: %v", got)
	}
}

func TestIndexForget(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Record(ctx, "/logs/gone.zip", time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := idx.Forget(ctx, "/logs/gone.zip"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	got, err := idx.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("forgotten segment still pending: %v", got)
	}
}

func TestIndexSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments.db")
	ctx := context.Background()
	idx, err := NewIndex(path)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	if err := idx.Record(ctx, "/logs/a.zip", time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx2, err := NewIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = idx2.Close() }()
	got, err := idx2.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 1 || got[0] != "/logs/a.zip" {
		t.Fatalf("ledger must survive reopen, got %v", got)
	}
}

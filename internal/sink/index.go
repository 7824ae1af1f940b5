package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Index is a SQLite-backed ledger of rotated segments. It records each
// archive when the segment closes and marks it once the sink accepted
// it, so the startup retry sweep works from durable state instead of
// guessing from directory contents.
type Index struct {
	db *sql.DB
}

// NewIndex opens (or creates) the index database at path. An empty
// path uses an in-memory database, which effectively disables
// cross-restart retry but keeps the writer code path uniform.
func NewIndex(path string) (*Index, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open segment index: %w", err)
	}
	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	idx := &Index{db: db}
	if err := idx.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) EnsureSchema(ctx context.Context) error {
	_, err := i.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS segments (
    path        TEXT PRIMARY KEY,
    closed_at   TIMESTAMP NOT NULL,
    uploaded    INTEGER NOT NULL DEFAULT 0,
    uploaded_at TIMESTAMP
)`)
	if err != nil {
		return fmt.Errorf("ensure segment schema: %w", err)
	}
	return nil
}

// Record registers a freshly closed segment archive. Re-recording the
// same path resets its upload state, which is what a re-created
// archive of the same name needs.
func (i *Index) Record(ctx context.Context, path string, closedAt time.Time) error {
	_, err := i.db.ExecContext(ctx, `
INSERT INTO segments(path, closed_at, uploaded) VALUES(?, ?, 0)
ON CONFLICT(path) DO UPDATE SET closed_at = excluded.closed_at, uploaded = 0, uploaded_at = NULL`,
		path, closedAt.UTC())
	if err != nil {
		return fmt.Errorf("record segment %s: %w", path, err)
	}
	return nil
}

// MarkUploaded marks the archive as accepted by the sink.
func (i *Index) MarkUploaded(ctx context.Context, path string) error {
	_, err := i.db.ExecContext(ctx,
		`UPDATE segments SET uploaded = 1, uploaded_at = ? WHERE path = ?`,
		time.Now().UTC(), path)
	if err != nil {
		return fmt.Errorf("mark uploaded %s: %w", path, err)
	}
	return nil
}

// Pending returns archives recorded but not yet accepted by the sink,
// oldest first.
func (i *Index) Pending(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx,
		`SELECT path FROM segments WHERE uploaded = 0 ORDER BY closed_at`)
	if err != nil {
		return nil, fmt.Errorf("query pending segments: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Forget drops a segment from the ledger (archive vanished on disk).
func (i *Index) Forget(ctx context.Context, path string) error {
	_, err := i.db.ExecContext(ctx, `DELETE FROM segments WHERE path = ?`, path)
	return err
}

func (i *Index) Close() error { return i.db.Close() }

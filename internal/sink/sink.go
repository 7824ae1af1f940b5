// Package sink hands finished segment archives to durable storage and
// keeps a local ledger of segments so failed hand-offs can be retried
// at the next startup.
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sink durably persists a compressed segment archive. Implementations
// must be idempotent under retry: the same path may be offered again
// after a reported failure.
type Sink interface {
	Store(ctx context.Context, path string) error
}

// DirSink stores archives by copying them into a destination
// directory. It stands in for remote blob storage at the boundary.
type DirSink struct {
	Dir string
}

func NewDirSink(dir string) (*DirSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("sink: destination directory not configured")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", dir, err)
	}
	return &DirSink{Dir: dir}, nil
}

// Store copies the archive into the destination directory. A re-offer
// of the same path overwrites the previous copy, which keeps retries
// idempotent. The copy goes through a temp file and rename so a
// partial write is never visible under the final name.
func (d *DirSink) Store(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("sink: open %s: %w", path, err)
	}
	defer func() { _ = src.Close() }()

	dst := filepath.Join(d.Dir, filepath.Base(path))
	tmp, err := os.CreateTemp(d.Dir, ".store-*")
	if err != nil {
		return fmt.Errorf("sink: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sink: copy %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("sink: close temp: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("sink: rename to %s: %w", dst, err)
	}
	return nil
}

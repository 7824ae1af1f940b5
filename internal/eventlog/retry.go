package eventlog

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/appmon/internal/metrics"
	"github.com/loykin/appmon/internal/sink"
)

// RetrySweep re-offers segment archives whose hand-off failed in a
// previous run. Candidates come from the segment index when one is
// configured, plus any *.zip neighbors of the live segment path (in
// case the index itself was lost). Returns the number of archives
// successfully stored.
func RetrySweep(ctx context.Context, s sink.Sink, idx *sink.Index, logPath string, diag *slog.Logger) (int, error) {
	if s == nil {
		return 0, nil
	}
	if diag == nil {
		diag = slog.Default()
	}

	seen := make(map[string]struct{})
	var candidates []string
	if idx != nil {
		pending, err := idx.Pending(ctx)
		if err != nil {
			return 0, err
		}
		for _, p := range pending {
			seen[p] = struct{}{}
			candidates = append(candidates, p)
		}
	}
	if matches, err := filepath.Glob(logPath + ".*"); err == nil {
		for _, m := range matches {
			if !strings.HasSuffix(m, ".zip") {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			candidates = append(candidates, m)
		}
	}

	stored := 0
	for _, archive := range candidates {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if _, err := os.Stat(archive); os.IsNotExist(err) {
			if idx != nil {
				_ = idx.Forget(ctx, archive)
			}
			continue
		}
		if err := s.Store(ctx, archive); err != nil {
			metrics.IncSinkStore("failure")
			diag.Warn("retry hand-off failed", "archive", archive, "error", err)
			continue
		}
		metrics.IncSinkStore("success")
		if idx != nil {
			_ = idx.MarkUploaded(ctx, archive)
		}
		if err := os.Remove(archive); err != nil {
			diag.Warn("remove stored archive failed", "archive", archive, "error", err)
		}
		stored++
	}
	return stored, nil
}

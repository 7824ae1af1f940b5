package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ColorTextHandler renders records through the stock text handler but
// writes an ANSI-colored level prefix directly to the writer, outside
// the record. The text handler quotes and escapes attribute values, so
// a color code placed inside the message would reach the terminal as
// literal \x1b text. The level attribute is dropped from the record;
// the prefix carries it.
type ColorTextHandler struct {
	mu   *sync.Mutex
	w    io.Writer
	text slog.Handler
}

// NewColorTextHandler creates a new ColorTextHandler. showTime
// controls whether the record's time attribute is emitted.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, showTime bool) *ColorTextHandler {
	inner := slog.HandlerOptions{}
	if opts != nil {
		inner = *opts
	}
	user := inner.ReplaceAttr
	inner.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 {
			if a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			if a.Key == slog.TimeKey && !showTime {
				return slog.Attr{}
			}
		}
		if user != nil {
			return user(groups, a)
		}
		return a
	}
	return &ColorTextHandler{
		mu:   &sync.Mutex{},
		w:    w,
		text: slog.NewTextHandler(w, &inner),
	}
}

func levelColor(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "\033[36m" // Cyan
	case l < slog.LevelWarn:
		return "\033[32m" // Green
	case l < slog.LevelError:
		return "\033[33m" // Yellow
	default:
		return "\033[31m" // Red
	}
}

// Enabled implements slog.Handler
func (h *ColorTextHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.text.Enabled(ctx, l)
}

// Handle implements slog.Handler. The prefix and the record are
// written under one lock so concurrent loggers sharing this handler
// cannot interleave them.
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := fmt.Fprintf(h.w, "%s%s\033[0m  ", levelColor(r.Level), r.Level.String()); err != nil {
		return err
	}
	return h.text.Handle(ctx, r)
}

// WithAttrs implements slog.Handler
func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColorTextHandler{mu: h.mu, w: h.w, text: h.text.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler
func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	return &ColorTextHandler{mu: h.mu, w: h.w, text: h.text.WithGroup(name)}
}

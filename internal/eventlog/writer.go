package eventlog

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/loykin/appmon/internal/metrics"
	"github.com/loykin/appmon/internal/sink"
)

// Trigger selects the rotation policy of the live segment.
type Trigger string

const (
	TriggerSize   Trigger = "size"
	TriggerHourly Trigger = "hourly"
)

// Format selects the message encoding.
const (
	FormatKV   = "kv"
	FormatJSON = "json"
)

const (
	defaultMaxSizeBytes = 1_000_000
	defaultMaxBackups   = 5
	defaultLevel        = "INFO"
)

// WriterConfig configures the segment writer.
type WriterConfig struct {
	Path         string  // live segment path
	Format       string  // kv (default) or json
	Echo         bool    // also write lines to stdout
	Trigger      Trigger // size (default) or hourly
	MaxSizeBytes int64   // size trigger threshold
	MaxBackups   int     // retained uncompressed backups when Compress is off
	Compress     bool    // archive rotated segments and offer them to the sink
	Sink         sink.Sink
	Index        *sink.Index
	Diag         *slog.Logger
}

// Writer appends events to the live segment and rotates it on a size
// or wall-clock-hour boundary. All appends from concurrent trackers
// serialize through one mutex; there is exactly one live segment per
// writer. Compression and sink hand-off run outside the critical
// section on the already-renamed segment, so a slow sink never stalls
// appends.
type Writer struct {
	cfg WriterConfig

	mu      sync.Mutex
	f       *os.File
	size    int64
	segHour time.Time // hour of the first event in the live segment
	lastTS  time.Time
	closed  bool

	archives sync.WaitGroup

	// test seam; defaults to os.Rename
	rename func(oldpath, newpath string) error
}

// NewWriter opens (or continues) the live segment at cfg.Path.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("eventlog: path not configured")
	}
	if cfg.Format == "" {
		cfg.Format = FormatKV
	}
	if cfg.Format != FormatKV && cfg.Format != FormatJSON {
		return nil, fmt.Errorf("eventlog: unknown format %q", cfg.Format)
	}
	if cfg.Trigger == "" {
		cfg.Trigger = TriggerSize
	}
	if cfg.Trigger != TriggerSize && cfg.Trigger != TriggerHourly {
		return nil, fmt.Errorf("eventlog: unknown rotation trigger %q", cfg.Trigger)
	}
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = defaultMaxSizeBytes
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = defaultMaxBackups
	}
	if cfg.Diag == nil {
		cfg.Diag = slog.Default()
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("eventlog: create %s: %w", dir, err)
		}
	}
	w := &Writer{cfg: cfg, rename: os.Rename}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) open() error {
	f, err := os.OpenFile(w.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("eventlog: open %s: %w", w.cfg.Path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("eventlog: stat %s: %w", w.cfg.Path, err)
	}
	w.f = f
	w.size = st.Size()
	w.segHour = time.Time{}
	return nil
}

// Append serializes the event and writes it to the live segment,
// rotating first if the event crosses an hour boundary and afterwards
// if the segment reached the size threshold. Event timestamps are
// clamped so they never decrease within a segment.
func (w *Writer) Append(e *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("eventlog: writer closed")
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.Time.Before(w.lastTS) {
		e.Time = w.lastTS
	}
	w.lastTS = e.Time

	var message string
	if w.cfg.Format == FormatJSON {
		m, err := e.FormatJSON()
		if err != nil {
			return fmt.Errorf("eventlog: encode event: %w", err)
		}
		message = m
	} else {
		message = e.FormatKV()
	}
	line := FormatLine(e.Time, defaultLevel, message)

	hour := e.Time.Truncate(time.Hour)
	if w.cfg.Trigger == TriggerHourly && w.size > 0 && !w.segHour.IsZero() && !hour.Equal(w.segHour) {
		if err := w.rotate(string(TriggerHourly)); err != nil {
			return err
		}
	}
	if w.segHour.IsZero() || w.size == 0 {
		w.segHour = hour
	}

	n, err := w.f.WriteString(line + "\n")
	w.size += int64(n)
	if err != nil {
		return fmt.Errorf("eventlog: append: %w", err)
	}
	if w.cfg.Echo {
		fmt.Println(line)
	}
	metrics.IncEvent(string(e.Type))
	metrics.SetLiveSegmentBytes(w.size)

	if w.cfg.Trigger == TriggerSize && w.size >= w.cfg.MaxSizeBytes {
		if err := w.rotate(string(TriggerSize)); err != nil {
			return err
		}
	}
	return nil
}

// rotate closes and renames the live segment, then opens a fresh one.
// Caller holds w.mu. The rename happens inside the critical section so
// no event can land between close and reopen; the archive step runs on
// the renamed file in the background.
func (w *Writer) rotate(trigger string) error {
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("eventlog: close segment: %w", err)
	}
	rotated := w.rotatedName()
	if err := w.rename(w.cfg.Path, rotated); err != nil {
		// Reopen the live segment so appends keep working; the
		// segment grows past its threshold until a rename succeeds.
		if oerr := w.open(); oerr != nil {
			w.cfg.Diag.Error("segment reopen after failed rename", "error", oerr)
		}
		return fmt.Errorf("eventlog: rename segment: %w", err)
	}
	metrics.IncRotation(trigger)
	if w.cfg.Compress {
		w.archives.Add(1)
		go func() {
			defer w.archives.Done()
			w.archive(rotated)
		}()
	} else {
		w.pruneBackups()
	}
	return w.open()
}

func (w *Writer) rotatedName() string {
	base := w.cfg.Path + "." + w.lastTS.Format("20060102T150405")
	name := base
	for i := 1; ; i++ {
		if _, err := os.Stat(name); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}

// archive compresses the rotated segment into a zip with a single
// .log member, records it in the segment index, and offers it to the
// sink. A failed hand-off retains the archive on disk for the next
// startup's retry sweep.
func (w *Writer) archive(rotated string) {
	zipPath := rotated + ".zip"
	if err := zipSegment(rotated, zipPath, filepath.Base(w.cfg.Path)); err != nil {
		w.cfg.Diag.Warn("segment compress failed", "segment", rotated, "error", err)
		return
	}
	if err := os.Remove(rotated); err != nil {
		w.cfg.Diag.Warn("remove rotated segment failed", "segment", rotated, "error", err)
	}
	if w.cfg.Index != nil {
		if err := w.cfg.Index.Record(context.Background(), zipPath, time.Now()); err != nil {
			w.cfg.Diag.Warn("segment index record failed", "archive", zipPath, "error", err)
		}
	}
	if w.cfg.Sink == nil {
		return
	}
	if err := w.cfg.Sink.Store(context.Background(), zipPath); err != nil {
		metrics.IncSinkStore("failure")
		w.cfg.Diag.Warn("segment hand-off failed, retained for retry", "archive", zipPath, "error", err)
		return
	}
	metrics.IncSinkStore("success")
	if w.cfg.Index != nil {
		if err := w.cfg.Index.MarkUploaded(context.Background(), zipPath); err != nil {
			w.cfg.Diag.Warn("segment index update failed", "archive", zipPath, "error", err)
		}
	}
	if err := os.Remove(zipPath); err != nil {
		w.cfg.Diag.Warn("remove stored archive failed", "archive", zipPath, "error", err)
	}
}

// pruneBackups bounds the number of retained uncompressed backups.
func (w *Writer) pruneBackups() {
	matches, err := filepath.Glob(w.cfg.Path + ".*")
	if err != nil {
		return
	}
	var backups []string
	for _, m := range matches {
		if strings.HasSuffix(m, ".zip") {
			continue
		}
		backups = append(backups, m)
	}
	if len(backups) <= w.cfg.MaxBackups {
		return
	}
	// Rotated names embed the timestamp, so lexical order is age order.
	sort.Strings(backups)
	for _, old := range backups[:len(backups)-w.cfg.MaxBackups] {
		if err := os.Remove(old); err != nil {
			w.cfg.Diag.Warn("prune backup failed", "backup", old, "error", err)
		}
	}
}

// Close stops accepting appends, closes the live segment, and waits
// for in-flight archive hand-offs.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	err := w.f.Close()
	w.mu.Unlock()
	w.archives.Wait()
	return err
}

func zipSegment(src, dst, member string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})
	hdr := &zip.FileHeader{Name: member, Method: zip.Deflate, Modified: time.Now()}
	fw, err := zw.CreateHeader(hdr)
	if err == nil {
		_, err = io.Copy(fw, in)
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
	}
	return err
}

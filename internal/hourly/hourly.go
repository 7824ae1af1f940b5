// Package hourly re-reads a raw activity log offline and re-partitions
// its foreground-window lines into wall-clock hour blocks, either as a
// full rewrite or as an idempotent incremental append driven by a
// persisted state file.
package hourly

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/loykin/appmon/internal/eventlog"
)

const (
	headerPrefix = "===== "
	headerSuffix = " ====="
	boundaryLine = "---------- hour boundary ----------"
)

// HourLayout is the bucket label format, minutes and seconds zeroed.
const HourLayout = "2006-01-02 15:00:00"

// Group is one hour bucket with its raw lines in input order.
type Group struct {
	Hour  time.Time
	Lines []string
}

// GroupFile buckets every active-window-class line (active_window and
// heartbeat events) of the input log by the hour of the event's own
// timestamp. Non-event lines and other event types are skipped.
// Groups come back sorted by hour.
func GroupFile(path string) ([]Group, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hourly: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	byHour := make(map[time.Time]*Group)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		p, err := eventlog.ParseLine(sc.Text())
		if err != nil {
			continue
		}
		if p.Type != eventlog.TypeActiveWindow && p.Type != eventlog.TypeHeartbeat {
			continue
		}
		hour := p.EventTime().Truncate(time.Hour)
		g, ok := byHour[hour]
		if !ok {
			g = &Group{Hour: hour}
			byHour[hour] = g
		}
		g.Lines = append(g.Lines, p.Raw)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("hourly: read %s: %w", path, err)
	}

	groups := make([]Group, 0, len(byHour))
	for _, g := range byHour {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Hour.Before(groups[j].Hour) })
	return groups, nil
}

func header(hour time.Time) string {
	return headerPrefix + hour.Format(HourLayout) + headerSuffix
}

func writeGroups(w *bufio.Writer, groups []Group, leadingBoundary bool) error {
	for i, g := range groups {
		if i > 0 || leadingBoundary {
			if _, err := fmt.Fprintln(w, boundaryLine); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, header(g.Hour)); err != nil {
			return err
		}
		for _, line := range g.Lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

// Write renders the bucketed output to w: hour headers, each hour's
// raw lines verbatim, and a boundary marker between consecutive hours
// (omitted after the last group).
func Write(w io.Writer, groups []Group) error {
	bw := bufio.NewWriter(w)
	err := writeGroups(bw, groups, false)
	if ferr := bw.Flush(); err == nil {
		err = ferr
	}
	return err
}

// WriteAll rewrites the full bucketed output file via Write.
func WriteAll(groups []Group, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("hourly: create %s: %w", outPath, err)
	}
	err = Write(f, groups)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// AppendNew appends only buckets whose hour is strictly after the
// persisted state and strictly before the hour containing now; the
// in-progress hour is necessarily incomplete and never emitted. After
// a successful append the state advances to the greatest hour written,
// making a re-run with identical input a no-op. Returns the number of
// hours appended.
func AppendNew(groups []Group, outPath, statePath string, now time.Time) (int, error) {
	if len(groups) == 0 {
		return 0, nil
	}
	st, err := LoadState(statePath)
	if err != nil {
		return 0, err
	}
	currentHour := now.Truncate(time.Hour)

	var toWrite []Group
	for _, g := range groups {
		if !st.LastHour.IsZero() && !g.Hour.After(st.LastHour) {
			continue
		}
		if !g.Hour.Before(currentHour) {
			continue
		}
		toWrite = append(toWrite, g)
	}
	if len(toWrite) == 0 {
		return 0, nil
	}

	// A non-empty output file needs a boundary before the next block.
	leadingBoundary := false
	if fi, err := os.Stat(outPath); err == nil && fi.Size() > 0 {
		leadingBoundary = true
	}

	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return 0, fmt.Errorf("hourly: open %s: %w", outPath, err)
	}
	w := bufio.NewWriter(f)
	err = writeGroups(w, toWrite, leadingBoundary)
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}

	st.LastHour = toWrite[len(toWrite)-1].Hour
	if err := SaveState(statePath, st); err != nil {
		return len(toWrite), err
	}
	return len(toWrite), nil
}

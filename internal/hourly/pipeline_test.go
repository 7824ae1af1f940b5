package hourly

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/appmon/internal/eventlog"
	"github.com/stretchr/testify/require"
)

// End-to-end: events appended through the segment writer come back out
// of the replay tool grouped under the right hour headers.
func TestPipelineWriterToHourlyGroups(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "events.log")
	w, err := eventlog.NewWriter(eventlog.WriterConfig{Path: logPath})
	require.NoError(t, err)

	base := time.Date(2025, 10, 29, 17, 0, 0, 0, time.Local)
	emit := func(typ eventlog.Type, at time.Time, name string) {
		e := eventlog.New(typ)
		e.Time = at
		e.SetInt("pid", 100).
			Set("name", name).
			Set("title", "untitled").
			SetTime("ts", at)
		require.NoError(t, w.Append(e))
	}

	emit(eventlog.TypeActiveWindow, base.Add(5*time.Minute), "code.exe")
	emit(eventlog.TypeHeartbeat, base.Add(35*time.Minute), "code.exe")
	emit(eventlog.TypeProcStart, base.Add(40*time.Minute), "notepad.exe")
	emit(eventlog.TypeActiveWindow, base.Add(65*time.Minute), "notepad.exe")
	require.NoError(t, w.Close())

	groups, err := GroupFile(logPath)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, base, groups[0].Hour)
	require.Equal(t, base.Add(time.Hour), groups[1].Hour)
	// The lifecycle line rode the same segment but is not window
	// activity; only the tracker lines survive grouping.
	require.Len(t, groups[0].Lines, 2)
	require.Len(t, groups[1].Lines, 1)

	outPath := filepath.Join(dir, "hourly.log")
	require.NoError(t, WriteAll(groups, outPath))
	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	out := string(data)
	require.Contains(t, out, "===== 2025-10-29 17:00:00 =====")
	require.Contains(t, out, "===== 2025-10-29 18:00:00 =====")
	require.Equal(t, 1, strings.Count(out, boundaryLine))
	require.NotContains(t, out, "proc_start")
}

// A second append run over the same input must not duplicate hours.
func TestPipelineIncrementalAppend(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "events.log")
	w, err := eventlog.NewWriter(eventlog.WriterConfig{Path: logPath})
	require.NoError(t, err)

	base := time.Date(2025, 10, 29, 17, 0, 0, 0, time.Local)
	for i, at := range []time.Time{base.Add(time.Minute), base.Add(61 * time.Minute)} {
		e := eventlog.New(eventlog.TypeActiveWindow)
		e.Time = at
		e.SetInt("pid", int64(100+i)).
			Set("name", "code.exe").
			Set("title", "untitled").
			SetTime("ts", at)
		require.NoError(t, w.Append(e))
	}
	require.NoError(t, w.Close())

	groups, err := GroupFile(logPath)
	require.NoError(t, err)

	outPath := filepath.Join(dir, "hourly.log")
	statePath := filepath.Join(dir, "state.json")
	now := base.Add(2 * time.Hour)

	n, err := AppendNew(groups, outPath, statePath, now)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	first, err := os.ReadFile(outPath)
	require.NoError(t, err)

	n, err = AppendNew(groups, outPath, statePath, now)
	require.NoError(t, err)
	require.Zero(t, n)
	second, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

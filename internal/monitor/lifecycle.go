package monitor

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/loykin/appmon/internal/classify"
	"github.com/loykin/appmon/internal/eventlog"
	"github.com/loykin/appmon/internal/metrics"
	"github.com/loykin/appmon/internal/proctable"
)

// RunLifecycle polls the process table and emits start/stop events for
// processes the classifier accepts. Newly started browsers get one
// bounded wait before a window-title lookup so the launch event can
// carry page identity; stopped processes reuse the executable path
// cached at start time since a dead PID cannot be re-queried.
func (m *Monitor) RunLifecycle(ctx context.Context) {
	defer m.guard(ModeProcess)
	m.emit(eventlog.New(eventlog.TypeMonitorStart).
		Set("scope", ModeProcess).
		Set("interval", m.cfg.Interval.String()).
		Set("include_system", strconv.FormatBool(m.cfg.IncludeSystem)).
		Set("gui_only", strconv.FormatBool(m.cfg.GUIOnly)))

	prev, err := m.snapshot()
	if err != nil {
		m.diag.Error("initial process snapshot failed", "error", err)
		m.emit(eventlog.New(eventlog.TypeMonitorCrash).
			Set("scope", ModeProcess).
			Set("cause", err.Error()))
		return
	}
	var prevTop map[int32]struct{}
	if m.cfg.GUIOnly {
		prevTop = m.win.TopLevelPIDs()
	}

	for {
		if !m.sleep(ctx) {
			m.emitStop(ModeProcess, "interrupt")
			return
		}
		begin := time.Now()

		curr, err := m.snapshot()
		if err != nil {
			// Transient: the next poll cycle is the retry.
			m.diag.Warn("process snapshot failed", "error", err)
			continue
		}
		var currTop map[int32]struct{}
		if m.cfg.GUIOnly {
			currTop = m.win.TopLevelPIDs()
		}

		started, stopped := proctable.Diff(prev, curr)
		for _, pid := range started {
			m.handleStart(ctx, pid, curr[pid], currTop)
		}
		for _, pid := range stopped {
			m.handleStop(pid, prev[pid], prevTop)
		}
		if m.cfg.SnapshotDump {
			m.dumpSnapshot(curr, currTop)
		}

		prev = curr
		prevTop = currTop
		metrics.IncPollCycle(ModeProcess)
		metrics.ObservePoll(ModeProcess, time.Since(begin).Seconds())
	}
}

// snapshot takes a process table snapshot with the system-process rule
// already applied.
func (m *Monitor) snapshot() (proctable.Snapshot, error) {
	snap, err := m.takeSnapshot()
	if err != nil {
		return nil, err
	}
	for pid, rec := range snap {
		if !m.filter.KeepRecord(rec) {
			delete(snap, pid)
		}
	}
	return snap, nil
}

func (m *Monitor) handleStart(ctx context.Context, pid int32, rec proctable.Record, topLevel map[int32]struct{}) {
	if !m.filter.AllowStart(pid, rec.Name, topLevel) {
		// Rejected PIDs hold no cache entry; bounds memory.
		delete(m.exeCache, pid)
		return
	}
	exe := ""
	if v, st := m.lookupExe(pid); st == proctable.Ok {
		exe = v
	}
	m.exeCache[pid] = exe

	e := eventlog.New(eventlog.TypeProcStart)
	e.SetInt("pid", int64(pid)).
		Set("name", rec.Name).
		Set("exe", exe).
		Set("user", rec.Username).
		SetTime("started_at", rec.CreatedAt)

	if classify.IsBrowser(rec.Name) {
		// Give the freshly launched browser a moment to create its
		// window; absence of a title afterwards is not an error.
		m.wait(ctx, m.cfg.LaunchTitleWait)
		if title, ok := m.win.TitleForPID(pid); ok {
			e.Set("page", classify.BrowserPage(rec.Name, title))
			e.Set("title", title)
		}
	}
	m.emit(e)
}

func (m *Monitor) handleStop(pid int32, rec proctable.Record, prevTop map[int32]struct{}) {
	exe, cached := m.exeCache[pid]
	delete(m.exeCache, pid)
	if !m.filter.AllowStop(pid, rec.Name, prevTop) {
		return
	}
	if !cached || exe == "" {
		// Best effort; the process is usually gone by now.
		if v, st := m.lookupExe(pid); st == proctable.Ok {
			exe = v
		}
	}
	e := eventlog.New(eventlog.TypeProcStop)
	e.SetInt("pid", int64(pid)).
		Set("name", rec.Name).
		Set("exe", exe).
		Set("user", rec.Username)
	m.emit(e)
}

// dumpSnapshot emits a diagnostic summary plus one line per currently
// accepted process. Never required for start/stop correctness.
func (m *Monitor) dumpSnapshot(curr proctable.Snapshot, topLevel map[int32]struct{}) {
	summary := eventlog.New(eventlog.TypeSnapshot)
	summary.SetInt("count", int64(len(curr)))
	m.emit(summary)

	pids := make([]int32, 0, len(curr))
	for pid := range curr {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	for _, pid := range pids {
		rec := curr[pid]
		if !m.filter.AllowStart(pid, rec.Name, topLevel) {
			continue
		}
		e := eventlog.New(eventlog.TypeSnapshot)
		e.SetInt("pid", int64(pid)).
			Set("name", rec.Name).
			Set("user", rec.Username)
		m.emit(e)
	}
}

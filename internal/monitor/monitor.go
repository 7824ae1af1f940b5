// Package monitor runs the polling loops: the active-window tracker
// and the process lifecycle monitor. Loops are independent goroutines
// that share nothing but the event writer, which serializes appends.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loykin/appmon/internal/classify"
	"github.com/loykin/appmon/internal/eventlog"
	"github.com/loykin/appmon/internal/proctable"
	"github.com/loykin/appmon/internal/winsys"
)

// Monitoring modes.
const (
	ModeActive  = "active"
	ModeProcess = "process"
	ModeBoth    = "both"
)

const (
	// minInterval is the busy-loop floor on the polling interval.
	minInterval       = 100 * time.Millisecond
	defaultInterval   = 2 * time.Second
	defaultLaunchWait = 500 * time.Millisecond
)

// EventWriter is the single write primitive the loops use.
type EventWriter interface {
	Append(e *eventlog.Event) error
}

// Config holds the operator-facing knobs of the two loops.
type Config struct {
	Interval        time.Duration // floor enforced at minInterval
	Heartbeat       time.Duration // zero disables heartbeats
	Mode            string        // active | process | both
	GUIOnly         bool
	IncludeSystem   bool
	SnapshotDump    bool
	LaunchTitleWait time.Duration // post-launch browser title wait
}

// Status is a point-in-time view for the status endpoint.
type Status struct {
	Mode               string    `json:"mode"`
	Running            bool      `json:"running"`
	WindowingSupported bool      `json:"windowing_supported"`
	StartedAt          time.Time `json:"started_at,omitzero"`
	EventsEmitted      int64     `json:"events_emitted"`
	LastEventAt        time.Time `json:"last_event_at,omitzero"`
}

// Monitor owns all mutable monitoring state: the per-PID executable
// cache belongs exclusively to the lifecycle loop, nothing here is
// package-level.
type Monitor struct {
	cfg    Config
	win    winsys.Querier
	filter *classify.Filter
	out    EventWriter
	diag   *slog.Logger

	// test seams; default to the proctable package functions
	takeSnapshot func() (proctable.Snapshot, error)
	lookupExe    func(int32) (string, proctable.Status)

	exeCache map[int32]string // owned by RunLifecycle only

	startedAt time.Time
	running   atomic.Bool
	events    atomic.Int64
	lastEvent atomic.Int64 // unix nanos of the last emitted event
}

// New builds a Monitor. Interval and wait floors are applied here so
// every loop sees normalized values.
func New(cfg Config, win winsys.Querier, filter *classify.Filter, out EventWriter, diag *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Interval < minInterval {
		cfg.Interval = minInterval
	}
	if cfg.LaunchTitleWait <= 0 {
		cfg.LaunchTitleWait = defaultLaunchWait
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeActive
	}
	if diag == nil {
		diag = slog.Default()
	}
	return &Monitor{
		cfg:          cfg,
		win:          win,
		filter:       filter,
		out:          out,
		diag:         diag,
		takeSnapshot: proctable.Take,
		lookupExe:    proctable.LookupExe,
		exeCache:     make(map[int32]string),
	}
}

// Run drives the configured mode until ctx is canceled. In both mode
// the two loops run concurrently and coordinate only through the
// shared writer.
func (m *Monitor) Run(ctx context.Context) error {
	m.startedAt = time.Now()
	m.running.Store(true)
	defer m.running.Store(false)

	switch m.cfg.Mode {
	case ModeActive:
		m.RunActive(ctx)
	case ModeProcess:
		m.RunLifecycle(ctx)
	case ModeBoth:
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.RunLifecycle(ctx)
		}()
		go func() {
			defer wg.Done()
			m.RunActive(ctx)
		}()
		wg.Wait()
	default:
		return fmt.Errorf("monitor: unknown mode %q", m.cfg.Mode)
	}
	return nil
}

// Status reports loop liveness for the status endpoint.
func (m *Monitor) Status() Status {
	st := Status{
		Mode:               m.cfg.Mode,
		Running:            m.running.Load(),
		WindowingSupported: m.win.Supported(),
		StartedAt:          m.startedAt,
		EventsEmitted:      m.events.Load(),
	}
	if ns := m.lastEvent.Load(); ns > 0 {
		st.LastEventAt = time.Unix(0, ns)
	}
	return st
}

func (m *Monitor) emit(e *eventlog.Event) {
	if err := m.out.Append(e); err != nil {
		m.diag.Error("event append failed", "type", string(e.Type), "error", err)
		return
	}
	m.events.Add(1)
	m.lastEvent.Store(e.Time.UnixNano())
}

// sleep waits one polling interval, returning false when ctx was
// canceled so the loop can finish the iteration and return.
func (m *Monitor) sleep(ctx context.Context) bool {
	return m.wait(ctx, m.cfg.Interval)
}

func (m *Monitor) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// guard is the outermost failure boundary of a loop: an unexpected
// panic becomes a crash marker event and the loop terminates. It is
// not restarted; the controlling process decides what to do next.
func (m *Monitor) guard(scope string) {
	if r := recover(); r != nil {
		m.diag.Error("monitor loop crashed", "scope", scope, "cause", r)
		m.emit(eventlog.New(eventlog.TypeMonitorCrash).
			Set("scope", scope).
			Set("cause", fmt.Sprintf("%v", r)))
	}
}

func (m *Monitor) emitStart(scope string) {
	m.emit(eventlog.New(eventlog.TypeMonitorStart).
		Set("scope", scope).
		Set("interval", m.cfg.Interval.String()))
}

func (m *Monitor) emitStop(scope, reason string) {
	m.emit(eventlog.New(eventlog.TypeMonitorStop).
		Set("scope", scope).
		Set("reason", reason))
}

package monitor

import (
	"context"
	"time"

	"github.com/loykin/appmon/internal/classify"
	"github.com/loykin/appmon/internal/eventlog"
	"github.com/loykin/appmon/internal/metrics"
)

// RunActive polls the foreground window and emits an event whenever
// the observation changes, plus optional heartbeat re-announcements so
// the log (and its rotation) stays live under a static foreground.
func (m *Monitor) RunActive(ctx context.Context) {
	defer m.guard(ModeActive)
	m.emitStart(ModeActive)

	var last observationKey
	haveLast := false
	lastHeartbeat := time.Now()

	for {
		begin := time.Now()
		obs := m.win.Foreground()
		key := observationKey{pid: obs.PID, name: obs.Name, title: obs.Title}

		heartbeatDue := m.cfg.Heartbeat > 0 && time.Since(lastHeartbeat) >= m.cfg.Heartbeat
		changed := !haveLast || key != last

		if changed || heartbeatDue {
			typ := eventlog.TypeActiveWindow
			if !changed {
				typ = eventlog.TypeHeartbeat
			}
			e := eventlog.New(typ)
			if obs.PID != 0 {
				e.SetInt("pid", int64(obs.PID))
			} else {
				e.Set("pid", "")
			}
			e.Set("name", obs.Name)
			if classify.IsBrowser(obs.Name) && obs.Title != "" {
				e.Set("page", classify.BrowserPage(obs.Name, obs.Title))
			}
			e.Set("title", obs.Title)
			e.SetTime("ts", e.Time)
			m.emit(e)

			last = key
			haveLast = true
			if heartbeatDue {
				lastHeartbeat = time.Now()
			}
		}

		metrics.IncPollCycle(ModeActive)
		metrics.ObservePoll(ModeActive, time.Since(begin).Seconds())
		if !m.sleep(ctx) {
			m.emitStop(ModeActive, "interrupt")
			return
		}
	}
}

// observationKey is the comparable identity of a foreground
// observation used for change detection.
type observationKey struct {
	pid   int32
	name  string
	title string
}

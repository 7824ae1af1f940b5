package appmon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/loykin/appmon/internal/classify"
	cfg "github.com/loykin/appmon/internal/config"
	"github.com/loykin/appmon/internal/eventlog"
	"github.com/loykin/appmon/internal/hourly"
	"github.com/loykin/appmon/internal/metrics"
	"github.com/loykin/appmon/internal/monitor"
	"github.com/loykin/appmon/internal/proctable"
	iapi "github.com/loykin/appmon/internal/server"
	"github.com/loykin/appmon/internal/sink"
	"github.com/loykin/appmon/internal/winsys"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Event = eventlog.Event

type Status = monitor.Status

type Config = cfg.FileConfig

type Snapshot = proctable.Snapshot

// App bundles a configured monitor with its event writer and segment
// ledger so embedders get one object to run and one to close.
type App struct {
	Monitor *monitor.Monitor
	Writer  *eventlog.Writer

	index *sink.Index
	dst   sink.Sink
	diag  *slog.Logger
}

// New wires a ready-to-run App from a loaded configuration: window
// system, classifier, segment writer, sink and ledger. The diag logger
// may be nil; slog.Default() is used then.
func New(fc *Config, diag *slog.Logger) (*App, error) {
	if diag == nil {
		diag = slog.Default()
	}

	var (
		dst sink.Sink
		idx *sink.Index
		err error
	)
	if fc.Sink.Type == "dir" {
		if dst, err = sink.NewDirSink(fc.Sink.Dir); err != nil {
			return nil, err
		}
		if idx, err = sink.NewIndex(fc.Sink.IndexPath); err != nil {
			return nil, err
		}
	}

	if fc.EventLog.Path == "" {
		return nil, fmt.Errorf("appmon: eventlog.path is required")
	}
	w, err := eventlog.NewWriter(eventlog.WriterConfig{
		Path:         fc.EventLog.Path,
		Format:       fc.EventLog.Format,
		Echo:         fc.EventLog.Echo,
		Trigger:      eventlog.Trigger(fc.EventLog.Rotation.Trigger),
		MaxSizeBytes: fc.EventLog.Rotation.MaxSizeBytes,
		MaxBackups:   fc.EventLog.Rotation.MaxBackups,
		Compress:     fc.EventLog.Rotation.Compress,
		Sink:         dst,
		Index:        idx,
		Diag:         diag,
	})
	if err != nil {
		if idx != nil {
			_ = idx.Close()
		}
		return nil, err
	}

	filter := classify.NewFilter(
		fc.Monitor.IncludeSystem,
		fc.Monitor.GUIOnly,
		fc.Monitor.Ignore,
		fc.Monitor.Whitelist,
		proctable.LookupCmdline,
	)
	mon := monitor.New(monitor.Config{
		Interval:        fc.Monitor.Interval,
		Heartbeat:       fc.Monitor.Heartbeat,
		Mode:            fc.Monitor.Mode,
		GUIOnly:         fc.Monitor.GUIOnly,
		IncludeSystem:   fc.Monitor.IncludeSystem,
		SnapshotDump:    fc.Monitor.SnapshotDump,
		LaunchTitleWait: fc.Monitor.LaunchTitleWait,
	}, winsys.New(), filter, w, diag)

	return &App{Monitor: mon, Writer: w, index: idx, dst: dst, diag: diag}, nil
}

// RetrySweep re-offers segment archives whose hand-off failed earlier.
// A no-op when no sink is configured.
func (a *App) RetrySweep(ctx context.Context, logPath string) (int, error) {
	if a.dst == nil || a.index == nil {
		return 0, nil
	}
	return eventlog.RetrySweep(ctx, a.dst, a.index, logPath, a.diag)
}

// Run drives the monitor until ctx is canceled.
func (a *App) Run(ctx context.Context) error { return a.Monitor.Run(ctx) }

// Close flushes and closes the writer, waits for in-flight archive
// hand-offs, and closes the segment ledger.
func (a *App) Close() error {
	err := a.Writer.Close()
	if a.index != nil {
		if cerr := a.index.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func LoadConfig(path string) (*Config, error) {
	return cfg.Load(path)
}

// NewHTTPServer starts an HTTP server exposing status and metrics for
// the given monitor.
func NewHTTPServer(addr, basePath string, m *monitor.Monitor) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, m)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// Hourly replay helpers for embedding the offline tool.

type HourlyGroup = hourly.Group

func GroupEventFile(path string) ([]HourlyGroup, error) { return hourly.GroupFile(path) }

func WriteHourly(groups []HourlyGroup, outPath string) error {
	return hourly.WriteAll(groups, outPath)
}

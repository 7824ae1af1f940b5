package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	eventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appmon",
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Number of events appended to the activity log, by type.",
		}, []string{"type"},
	)
	pollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appmon",
			Subsystem: "monitor",
			Name:      "poll_cycles_total",
			Help:      "Completed poll cycles per tracker loop.",
		}, []string{"loop"},
	)
	pollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "appmon",
			Subsystem: "monitor",
			Name:      "poll_duration_seconds",
			Help:      "Duration of one poll cycle, excluding the interval sleep.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"loop"},
	)
	segmentRotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appmon",
			Subsystem: "segments",
			Name:      "rotations_total",
			Help:      "Number of segment rotations, by trigger (size or hourly).",
		}, []string{"trigger"},
	)
	segmentBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "appmon",
			Subsystem: "segments",
			Name:      "live_bytes",
			Help:      "Size of the live (open for append) segment in bytes.",
		},
	)
	sinkStores = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appmon",
			Subsystem: "sink",
			Name:      "stores_total",
			Help:      "Segment archive hand-offs to the sink, by outcome.",
		}, []string{"outcome"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{eventsEmitted, pollCycles, pollDuration, segmentRotations, segmentBytes, sinkStores}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers used by internal packages. They no-op until
// Register has been called.

func IncEvent(eventType string) {
	if regOK.Load() {
		eventsEmitted.WithLabelValues(eventType).Inc()
	}
}

func IncPollCycle(loop string) {
	if regOK.Load() {
		pollCycles.WithLabelValues(loop).Inc()
	}
}

func ObservePoll(loop string, seconds float64) {
	if regOK.Load() {
		pollDuration.WithLabelValues(loop).Observe(seconds)
	}
}

func IncRotation(trigger string) {
	if regOK.Load() {
		segmentRotations.WithLabelValues(trigger).Inc()
	}
}

func SetLiveSegmentBytes(n int64) {
	if regOK.Load() {
		segmentBytes.Set(float64(n))
	}
}

func IncSinkStore(outcome string) {
	if regOK.Load() {
		sinkStores.WithLabelValues(outcome).Inc()
	}
}

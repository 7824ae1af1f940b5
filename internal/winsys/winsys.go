// Package winsys queries the desktop windowing system: the current
// foreground window and the set of processes owning visible top-level
// windows. Absence is the error model here; queries degrade to zero
// values and never fail the caller.
package winsys

// Observation describes the foreground window at one poll. Zero values
// mean the fact could not be determined (no foreground window, access
// denied, title not yet set) and are valid, frequent results.
type Observation struct {
	PID   int32
	Name  string
	Title string
}

// Querier is the window-system surface the trackers poll.
type Querier interface {
	// Foreground returns the current foreground window observation.
	Foreground() Observation
	// TopLevelPIDs returns the PIDs owning at least one visible,
	// titled top-level window. Recomputed per call, never cached.
	TopLevelPIDs() map[int32]struct{}
	// TitleForPID finds a visible window title for the PID, if any.
	TitleForPID(pid int32) (string, bool)
	// Supported reports whether this platform has a windowing backend.
	Supported() bool
}

// New returns the platform Querier. On platforms without a windowing
// backend it returns a stub whose observations are always absent, so
// process-only monitoring keeps working.
func New() Querier { return newQuerier() }

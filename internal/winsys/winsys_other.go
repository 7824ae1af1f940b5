//go:build !windows

package winsys

// stubQuerier is used on platforms without a windowing backend. Every
// answer is "absent", which the trackers already treat as a normal
// observation, so process monitoring runs unchanged.
type stubQuerier struct{}

func newQuerier() Querier { return stubQuerier{} }

func (stubQuerier) Supported() bool { return false }

func (stubQuerier) Foreground() Observation { return Observation{} }

func (stubQuerier) TopLevelPIDs() map[int32]struct{} { return map[int32]struct{}{} }

func (stubQuerier) TitleForPID(int32) (string, bool) { return "", false }

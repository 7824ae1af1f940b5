package proctable

import "sort"

// Diff computes the PIDs that appear only in curr (started) and only
// in prev (stopped). A PID present in both snapshots is never reported
// even if its record changed between polls; PID reuse across the
// sampling interval is not detected at this layer. Both result slices
// are ascending so emission order is reproducible.
func Diff(prev, curr Snapshot) (started, stopped []int32) {
	for pid := range curr {
		if _, ok := prev[pid]; !ok {
			started = append(started, pid)
		}
	}
	for pid := range prev {
		if _, ok := curr[pid]; !ok {
			stopped = append(stopped, pid)
		}
	}
	sort.Slice(started, func(i, j int) bool { return started[i] < started[j] })
	sort.Slice(stopped, func(i, j int) bool { return stopped[i] < stopped[j] })
	return started, stopped
}

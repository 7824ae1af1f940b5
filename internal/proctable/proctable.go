package proctable

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Status discriminates the outcome of a per-process detail lookup.
// Callers switch on it instead of unwrapping OS-specific errors.
type Status int

const (
	Ok Status = iota
	NotFound
	AccessDenied
)

// Record holds the fields observed for one running process at snapshot
// time. Identity is PID and is only meaningful within one host boot.
// Exe is resolved lazily by the lifecycle monitor; it is empty here.
type Record struct {
	PID       int32
	Name      string
	Exe       string
	Username  string
	CreatedAt time.Time // zero when the OS refused the query
}

// Snapshot is a point-in-time view of the process table keyed by PID.
type Snapshot map[int32]Record

// Take enumerates all running processes. Per-process field failures
// (process vanished mid-enumeration, access denied) degrade to absent
// values; only a failure to enumerate at all returns an error.
func Take() (Snapshot, error) {
	procs, err := gopsproc.Processes()
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}
	snap := make(Snapshot, len(procs))
	for _, p := range procs {
		rec := Record{PID: p.Pid}
		if name, err := p.Name(); err == nil {
			rec.Name = name
		}
		if user, err := p.Username(); err == nil {
			rec.Username = user
		}
		if ms, err := p.CreateTime(); err == nil && ms > 0 {
			rec.CreatedAt = time.UnixMilli(ms)
		}
		snap[p.Pid] = rec
	}
	return snap, nil
}

// LookupExe resolves the executable path of a live process.
func LookupExe(pid int32) (string, Status) {
	p, err := gopsproc.NewProcess(pid)
	if err != nil {
		return "", classifyErr(err)
	}
	exe, err := p.Exe()
	if err != nil {
		return "", classifyErr(err)
	}
	return exe, Ok
}

// LookupCmdline returns the launch arguments of a live process.
func LookupCmdline(pid int32) ([]string, Status) {
	p, err := gopsproc.NewProcess(pid)
	if err != nil {
		return nil, classifyErr(err)
	}
	args, err := p.CmdlineSlice()
	if err != nil {
		return nil, classifyErr(err)
	}
	return args, Ok
}

// LookupName resolves the short name of a live process.
func LookupName(pid int32) (string, Status) {
	p, err := gopsproc.NewProcess(pid)
	if err != nil {
		return "", classifyErr(err)
	}
	name, err := p.Name()
	if err != nil {
		return "", classifyErr(err)
	}
	return name, Ok
}

func classifyErr(err error) Status {
	if errors.Is(err, gopsproc.ErrorProcessNotRunning) {
		return NotFound
	}
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
		return AccessDenied
	}
	// The process table is eventually consistent; treat anything else
	// as the process having gone away.
	return NotFound
}

//go:build windows

package winsys

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/loykin/appmon/internal/proctable"
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procGetWindowTextLengthW     = user32.NewProc("GetWindowTextLengthW")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procEnumWindows              = user32.NewProc("EnumWindows")
)

type winQuerier struct{}

func newQuerier() Querier { return winQuerier{} }

func (winQuerier) Supported() bool { return true }

func (winQuerier) Foreground() Observation {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return Observation{}
	}
	obs := Observation{
		PID:   windowPID(hwnd),
		Title: windowTitle(hwnd),
	}
	if obs.PID != 0 {
		if name, st := proctable.LookupName(obs.PID); st == proctable.Ok {
			obs.Name = name
		}
	}
	return obs
}

func (winQuerier) TopLevelPIDs() map[int32]struct{} {
	pids := make(map[int32]struct{})
	for _, hwnd := range listWindows() {
		if !isVisible(hwnd) || titleLength(hwnd) == 0 {
			continue
		}
		if pid := windowPID(hwnd); pid != 0 {
			pids[pid] = struct{}{}
		}
	}
	return pids
}

func (winQuerier) TitleForPID(pid int32) (string, bool) {
	for _, hwnd := range listWindows() {
		if !isVisible(hwnd) || windowPID(hwnd) != pid {
			continue
		}
		if title := windowTitle(hwnd); title != "" {
			return title, true
		}
	}
	return "", false
}

// enumCallback appends each handle to the slice passed via lParam.
// Created once; Windows never releases callback thunks.
var enumCallback = windows.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
	handles := (*[]uintptr)(unsafe.Pointer(lparam))
	*handles = append(*handles, hwnd)
	return 1 // continue enumeration
})

// listWindows performs one EnumWindows pass collecting every top-level
// handle. The callback only appends; all filtering happens on the
// returned slice.
func listWindows() []uintptr {
	var handles []uintptr
	// EnumWindows can fail under restricted desktops; an empty slice
	// is the correct degraded answer.
	_, _, _ = procEnumWindows.Call(enumCallback, uintptr(unsafe.Pointer(&handles)))
	return handles
}

func isVisible(hwnd uintptr) bool {
	ret, _, _ := procIsWindowVisible.Call(hwnd)
	return ret != 0
}

func windowPID(hwnd uintptr) int32 {
	var pid uint32
	_, _, _ = procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	return int32(pid)
}

func titleLength(hwnd uintptr) int {
	n, _, _ := procGetWindowTextLengthW.Call(hwnd)
	return int(n)
}

func windowTitle(hwnd uintptr) string {
	n := titleLength(hwnd)
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	copied, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if copied == 0 {
		return ""
	}
	return syscall.UTF16ToString(buf[:copied])
}

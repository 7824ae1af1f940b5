// Package classify decides which observed processes are worth logging:
// system accounts and kernel pseudo-processes are noise, helper children
// of multi-process browsers are suppressed, and in GUI-only mode a
// process must own a visible top-level window (or be whitelisted).
package classify

import (
	"strings"

	"github.com/loykin/appmon/internal/proctable"
)

// CmdlineFunc resolves launch arguments for a PID. Injected so the
// suppression rule is testable without live processes.
type CmdlineFunc func(pid int32) ([]string, proctable.Status)

// DefaultIgnore is the stock set of noisy helper processes skipped
// outside GUI-only mode. Config may replace it entirely.
var DefaultIgnore = []string{
	"conhost.exe",
	"netsh.exe",
	"wslhost.exe",
	"wslrelay.exe",
	"vmmemwsl",
	"vmwp.exe",
	"git.exe",
	"git-remote-https.exe",
	"git-credential-manager.exe",
	"sh.exe",
}

var systemNames = map[string]struct{}{
	"System":              {},
	"System Idle Process": {},
	"Registry":            {},
	"Memory Compression":  {},
}

var systemAccounts = map[string]struct{}{
	"SYSTEM":          {},
	"LOCAL SERVICE":   {},
	"NETWORK SERVICE": {},
}

// Chromium-family browsers spawn --type= tagged helper children.
var chromiumNames = map[string]struct{}{
	"chrome.exe":         {},
	"msedge.exe":         {},
	"brave.exe":          {},
	"msedgewebview2.exe": {},
}

// Browsers whose window title carries the page identity.
var browserNames = map[string]struct{}{
	"chrome.exe":  {},
	"msedge.exe":  {},
	"brave.exe":   {},
	"firefox.exe": {},
}

var browserSuffixes = []string{
	" - Google Chrome",
	" - Microsoft Edge",
	" - Brave",
	" - Mozilla Firefox",
}

// IsSystem reports whether the process belongs to the OS rather than a
// user session: the reserved idle/system PIDs, service accounts (with
// any DOMAIN\ prefix stripped), or well-known kernel pseudo-processes.
func IsSystem(pid int32, name, user string) bool {
	if pid == 0 || pid == 4 {
		return true
	}
	if user != "" {
		acct := user
		if i := strings.LastIndexByte(acct, '\\'); i >= 0 {
			acct = acct[i+1:]
		}
		if _, ok := systemAccounts[strings.ToUpper(acct)]; ok {
			return true
		}
	}
	_, ok := systemNames[name]
	return ok
}

// IsSuppressedChild reports whether the process is a helper child of a
// multi-process browser. Only recognized browser names are inspected;
// anything else always passes. A --type= marker means child unless it
// is --type=browser. Failure to read the command line is not
// suppression: losing a launch event silently is worse than one extra
// line.
func IsSuppressedChild(pid int32, name string, cmdline CmdlineFunc) bool {
	if _, ok := chromiumNames[strings.ToLower(name)]; !ok {
		return false
	}
	if cmdline == nil {
		return false
	}
	args, st := cmdline(pid)
	if st != proctable.Ok {
		return false
	}
	for _, arg := range args {
		if strings.HasPrefix(arg, "--type=") {
			return arg != "--type=browser"
		}
	}
	return false
}

// IsBrowser reports whether the name belongs to a browser whose titles
// carry page identity.
func IsBrowser(name string) bool {
	_, ok := browserNames[strings.ToLower(name)]
	return ok
}

// BrowserPage derives the page identity from a raw browser window
// title by stripping known " - <Browser>" suffixes until none remain,
// so deriving from an already derived page changes nothing. Returns ""
// when name is not a recognized browser or the title is empty.
func BrowserPage(name, title string) string {
	if title == "" || !IsBrowser(name) {
		return ""
	}
	for stripped := true; stripped; {
		stripped = false
		for _, suffix := range browserSuffixes {
			if strings.HasSuffix(title, suffix) {
				title = strings.TrimSuffix(title, suffix)
				stripped = true
			}
		}
	}
	return title
}

// Filter composes the predicates under operator configuration.
type Filter struct {
	IncludeSystem bool
	GUIOnly       bool
	ignore        map[string]struct{}
	whitelist     map[string]struct{}
	cmdline       CmdlineFunc
}

// NewFilter builds a Filter. ignore defaults to DefaultIgnore when
// nil; pass an empty slice to disable the ignore list. Name matching
// is case-insensitive on both lists.
func NewFilter(includeSystem, guiOnly bool, ignore, whitelist []string, cmdline CmdlineFunc) *Filter {
	if ignore == nil {
		ignore = DefaultIgnore
	}
	f := &Filter{
		IncludeSystem: includeSystem,
		GUIOnly:       guiOnly,
		ignore:        make(map[string]struct{}, len(ignore)),
		whitelist:     make(map[string]struct{}, len(whitelist)),
		cmdline:       cmdline,
	}
	for _, n := range ignore {
		f.ignore[strings.ToLower(n)] = struct{}{}
	}
	for _, n := range whitelist {
		f.whitelist[strings.ToLower(n)] = struct{}{}
	}
	return f
}

// Whitelisted reports whether the name is explicitly always-include.
func (f *Filter) Whitelisted(name string) bool {
	_, ok := f.whitelist[strings.ToLower(name)]
	return ok
}

// KeepRecord applies the system-process rule to a snapshot entry.
func (f *Filter) KeepRecord(r proctable.Record) bool {
	return f.IncludeSystem || !IsSystem(r.PID, r.Name, r.Username)
}

// AllowStart decides whether a newly started process generates an
// event. topLevel is the current set of PIDs owning visible titled
// top-level windows. The ignore-list rule is skipped under GUIOnly;
// GUI filtering already implies relevance there.
func (f *Filter) AllowStart(pid int32, name string, topLevel map[int32]struct{}) bool {
	return f.allow(pid, name, topLevel)
}

// AllowStop mirrors AllowStart for stopped processes; prevTopLevel is
// the top-level window set from the poll before the process vanished,
// since a dead PID cannot be re-queried.
func (f *Filter) AllowStop(pid int32, name string, prevTopLevel map[int32]struct{}) bool {
	return f.allow(pid, name, prevTopLevel)
}

func (f *Filter) allow(pid int32, name string, topLevel map[int32]struct{}) bool {
	lname := strings.ToLower(name)
	if !f.GUIOnly {
		if _, ignored := f.ignore[lname]; ignored && !f.Whitelisted(name) {
			return false
		}
	}
	if IsSuppressedChild(pid, name, f.cmdline) {
		return false
	}
	if f.GUIOnly {
		if _, windowed := topLevel[pid]; !windowed && !f.Whitelisted(name) {
			return false
		}
	}
	return true
}

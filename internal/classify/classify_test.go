package classify

import (
	"testing"

	"github.com/loykin/appmon/internal/proctable"
)

func TestIsSystem(t *testing.T) {
	cases := []struct {
		pid  int32
		name string
		user string
		want bool
	}{
		{0, "System Idle Process", "", true},
		{4, "System", "", true},
		{1234, "svchost.exe", `NT AUTHORITY\SYSTEM`, true},
		{1234, "svchost.exe", `NT AUTHORITY\LOCAL SERVICE`, true},
		{1234, "svchost.exe", `NT AUTHORITY\network service`, true},
		{1234, "Registry", "", true},
		{1234, "Memory Compression", "", true},
		{5678, "notepad.exe", `DESKTOP\alice`, false},
		{5678, "chrome.exe", "alice", false},
	}
	for _, c := range cases {
		if got := IsSystem(c.pid, c.name, c.user); got != c.want {
			t.Fatalf("IsSystem(%d,%q,%q)=%v want %v", c.pid, c.name, c.user, got, c.want)
		}
	}
}

func cmdlineOf(args []string, st proctable.Status) CmdlineFunc {
	return func(int32) ([]string, proctable.Status) { return args, st }
}

func TestIsSuppressedChild(t *testing.T) {
	renderer := cmdlineOf([]string{"chrome.exe", "--type=renderer"}, proctable.Ok)
	if !IsSuppressedChild(1, "chrome.exe", renderer) {
		t.Fatalf("renderer child should be suppressed")
	}
	mainMarker := cmdlineOf([]string{"chrome.exe", "--type=browser"}, proctable.Ok)
	if IsSuppressedChild(1, "chrome.exe", mainMarker) {
		t.Fatalf("--type=browser is the main process")
	}
	noMarker := cmdlineOf([]string{"chrome.exe", "--profile-directory=Default"}, proctable.Ok)
	if IsSuppressedChild(1, "chrome.exe", noMarker) {
		t.Fatalf("no --type marker means main process")
	}
	// Inspection failure must not suppress: losing a launch event is worse.
	gone := cmdlineOf(nil, proctable.NotFound)
	if IsSuppressedChild(1, "msedge.exe", gone) {
		t.Fatalf("lookup failure must default to allow")
	}
	denied := cmdlineOf(nil, proctable.AccessDenied)
	if IsSuppressedChild(1, "brave.exe", denied) {
		t.Fatalf("access denied must default to allow")
	}
	// Non-browser names always pass regardless of cmdline.
	if IsSuppressedChild(1, "notepad.exe", renderer) {
		t.Fatalf("non-browser names are never suppressed")
	}
}

func TestBrowserPage(t *testing.T) {
	if got := BrowserPage("chrome.exe", "Example - Google Chrome"); got != "Example" {
		t.Fatalf("expected Example, got %q", got)
	}
	if got := BrowserPage("firefox.exe", "Docs - Mozilla Firefox"); got != "Docs" {
		t.Fatalf("expected Docs, got %q", got)
	}
	// Non-browser processes get no page.
	if got := BrowserPage("notepad.exe", "readme.txt - Notepad"); got != "" {
		t.Fatalf("non-browser should yield empty page, got %q", got)
	}
	if got := BrowserPage("chrome.exe", ""); got != "" {
		t.Fatalf("empty title should yield empty page")
	}
	// Titles without a known suffix pass through unchanged.
	if got := BrowserPage("chrome.exe", "Just A Title"); got != "Just A Title" {
		t.Fatalf("unsuffixed title should pass through, got %q", got)
	}
	// Stacked suffixes strip all the way down in one derivation.
	if got := BrowserPage("chrome.exe", "Nested - Google Chrome - Google Chrome"); got != "Nested" {
		t.Fatalf("stacked suffixes should strip to the fixpoint, got %q", got)
	}
}

func TestBrowserPageIdempotent(t *testing.T) {
	titles := []string{
		"Example - Google Chrome",
		"Plain",
		"Nested - Google Chrome - Google Chrome",
		"GitHub - Microsoft Edge",
	}
	for _, title := range titles {
		once := BrowserPage("chrome.exe", title)
		twice := BrowserPage("chrome.exe", once)
		if once != twice {
			t.Fatalf("strip not idempotent for %q: %q then %q", title, once, twice)
		}
	}
}

func TestFilterIgnoreList(t *testing.T) {
	f := NewFilter(false, false, nil, nil, nil)
	if f.AllowStart(10, "conhost.exe", nil) {
		t.Fatalf("conhost.exe is in the default ignore list")
	}
	if !f.AllowStart(10, "notepad.exe", nil) {
		t.Fatalf("notepad.exe is not ignored")
	}
}

func TestFilterWhitelistBeatsIgnore(t *testing.T) {
	for _, guiOnly := range []bool{false, true} {
		f := NewFilter(false, guiOnly, nil, []string{"conhost.exe"}, nil)
		if !f.AllowStart(10, "conhost.exe", nil) {
			t.Fatalf("whitelisted name must never be suppressed (gui_only=%v)", guiOnly)
		}
	}
}

func TestFilterGUIOnly(t *testing.T) {
	f := NewFilter(false, true, nil, nil, nil)
	windowed := map[int32]struct{}{42: {}}
	if !f.AllowStart(42, "app.exe", windowed) {
		t.Fatalf("pid owning a top-level window must pass in gui_only")
	}
	if f.AllowStart(43, "headless.exe", windowed) {
		t.Fatalf("windowless pid must be rejected in gui_only")
	}
	// Ignore list is skipped entirely under gui_only: an ignored name
	// that owns a window still passes.
	if !f.AllowStart(42, "conhost.exe", windowed) {
		t.Fatalf("ignore list must not apply in gui_only mode")
	}
}

func TestFilterStopUsesPreviousWindowSet(t *testing.T) {
	f := NewFilter(false, true, nil, nil, nil)
	prevWindowed := map[int32]struct{}{99: {}}
	if !f.AllowStop(99, "app.exe", prevWindowed) {
		t.Fatalf("stop of previously windowed pid must pass")
	}
	if f.AllowStop(100, "ghost.exe", prevWindowed) {
		t.Fatalf("stop of never-windowed pid must be rejected in gui_only")
	}
}

func TestFilterSuppressedChildComposition(t *testing.T) {
	renderer := cmdlineOf([]string{"--type=gpu-process"}, proctable.Ok)
	f := NewFilter(false, false, nil, nil, renderer)
	if f.AllowStart(5, "chrome.exe", nil) {
		t.Fatalf("browser helper child must be suppressed")
	}
	if !f.AllowStart(5, "code.exe", nil) {
		t.Fatalf("non-browser must not be affected by child suppression")
	}
}

func TestFilterKeepRecord(t *testing.T) {
	rec := proctable.Record{PID: 1000, Name: "svchost.exe", Username: `NT AUTHORITY\SYSTEM`}
	noSystem := NewFilter(false, false, nil, nil, nil)
	if noSystem.KeepRecord(rec) {
		t.Fatalf("system record must be dropped when include_system=false")
	}
	withSystem := NewFilter(true, false, nil, nil, nil)
	if !withSystem.KeepRecord(rec) {
		t.Fatalf("system record must be kept when include_system=true")
	}
}

func TestFilterCustomIgnoreOverride(t *testing.T) {
	// An explicit empty ignore list disables the default set.
	f := NewFilter(false, false, []string{}, nil, nil)
	if !f.AllowStart(10, "conhost.exe", nil) {
		t.Fatalf("empty ignore override must disable the default list")
	}
	g := NewFilter(false, false, []string{"custom.exe"}, nil, nil)
	if g.AllowStart(10, "CUSTOM.EXE", nil) {
		t.Fatalf("ignore matching must be case-insensitive")
	}
}

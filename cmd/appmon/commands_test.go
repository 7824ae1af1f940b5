package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootHasSubcommands(t *testing.T) {
	root := buildRoot()
	want := map[string]bool{"run": false, "hourly": false, "list": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing subcommand %q", name)
		}
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if _, err := runCommand(t, "run"); err == nil {
		t.Fatalf("run without --config must fail")
	}
}

func TestRunRejectsBadMode(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "appmon.toml")
	if err := os.WriteFile(cfg, []byte("[eventlog]\npath = \"/tmp/x.log\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := runCommand(t, "run", "--config", cfg, "--mode", "turbo"); err == nil {
		t.Fatalf("bad --mode must fail validation")
	}
}

func TestHourlyRequiresLogfile(t *testing.T) {
	if _, err := runCommand(t, "hourly"); err == nil {
		t.Fatalf("hourly without --logfile must fail")
	}
}

func TestHourlyAppendRequiresOutAndState(t *testing.T) {
	log := filepath.Join(t.TempDir(), "events.log")
	if err := os.WriteFile(log, nil, 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	if _, err := runCommand(t, "hourly", "--logfile", log, "--append"); err == nil {
		t.Fatalf("append without --out/--state must fail")
	}
}

func TestHourlyToStdout(t *testing.T) {
	log := filepath.Join(t.TempDir(), "events.log")
	lines := strings.Join([]string{
		"2025-10-29 17:00:01 | INFO | active_window pid=100 name=code.exe title=main.go ts=2025-10-29 17:00:01",
		"2025-10-29 17:05:00 | INFO | proc_start pid=200 name=notepad.exe exe=? user=alice",
		"2025-10-29 18:00:02 | INFO | active_window pid=200 name=notepad.exe title=notes ts=2025-10-29 18:00:02",
	}, "\n") + "\n"
	if err := os.WriteFile(log, []byte(lines), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, err := runCommand(t, "hourly", "--logfile", log)
	if err != nil {
		t.Fatalf("hourly: %v", err)
	}
	if !strings.Contains(out, "===== 2025-10-29 17:00:00 =====") ||
		!strings.Contains(out, "===== 2025-10-29 18:00:00 =====") {
		t.Fatalf("missing hour headers:\n%s", out)
	}
	if !strings.Contains(out, "hour boundary") {
		t.Fatalf("missing boundary between hours:\n%s", out)
	}
	if strings.Contains(out, "proc_start") {
		t.Fatalf("lifecycle lines must not appear in hourly output:\n%s", out)
	}
}

func TestHourlyWriteToFile(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "events.log")
	out := filepath.Join(dir, "hourly.log")
	line := "2025-10-29 17:00:01 | INFO | active_window pid=100 name=code.exe title=main.go ts=2025-10-29 17:00:01\n"
	if err := os.WriteFile(log, []byte(line), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	stdout, err := runCommand(t, "hourly", "--logfile", log, "--out", out)
	if err != nil {
		t.Fatalf("hourly: %v", err)
	}
	if !strings.Contains(stdout, "wrote 1 hour(s)") {
		t.Fatalf("missing summary: %q", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read out: %v", err)
	}
	if !strings.Contains(string(data), "===== 2025-10-29 17:00:00 =====") {
		t.Fatalf("output file content:\n%s", data)
	}
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vthunder/ambientflow/internal/usage"
)

// executeCommand runs a fresh root command with args and captures its output
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err := root.ExecuteC()
	return buf.String(), err
}

func writeConfig(t *testing.T, body string) (cfgPath, stateDir string) {
	t.Helper()
	dir := t.TempDir()
	stateDir = filepath.Join(dir, "state")
	cfgPath = filepath.Join(dir, "config.yaml")
	body = "state_path: " + stateDir + "\n" + body
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath, stateDir
}

func TestConfigCommandPrintsEffectiveYAML(t *testing.T) {
	cfgPath, _ := writeConfig(t, "sound:\n  enabled: true\n  volume: 3\n")

	out, err := executeCommand(t, "--config", cfgPath, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.Contains(out, "volume: 1") {
		t.Errorf("volume not clamped in output:\n%s", out)
	}
	if !strings.Contains(out, "work_hours_start:") || !strings.Contains(out, "09:00") {
		t.Errorf("defaults missing:\n%s", out)
	}
}

func TestConfigCommandRejectsBadYAML(t *testing.T) {
	cfgPath, _ := writeConfig(t, "sound: [\n")
	if _, err := executeCommand(t, "--config", cfgPath, "config"); err == nil {
		t.Error("expected parse error")
	}
}

func TestStatsCommand(t *testing.T) {
	cfgPath, stateDir := writeConfig(t, "")

	store, err := usage.Open(stateDir)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)
	for i, s := range []usage.Session{
		{ID: "a", App: "code", Start: start, End: start.Add(90 * time.Minute), Seconds: 5400},
		{ID: "b", App: "vlc", Start: start.Add(2 * time.Hour), End: start.Add(2*time.Hour + 10*time.Minute), Seconds: 600},
	} {
		if err := store.Record(s); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	store.Close()

	out, err := executeCommand(t, "--config", cfgPath, "stats", "--date", "2026-05-04", "--sessions")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Usage for 2026-05-04", "code", "1h30m", "vlc", "10m00s", "10:00-11:30"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatsCommandBadDate(t *testing.T) {
	cfgPath, _ := writeConfig(t, "")
	if _, err := executeCommand(t, "--config", cfgPath, "stats", "--date", "May 4"); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0m00s"},
		{59, "0m59s"},
		{600, "10m00s"},
		{3600, "1h00m"},
		{5430, "1h30m"},
	}
	for _, tt := range tests {
		if got := formatSeconds(tt.in); got != tt.want {
			t.Errorf("formatSeconds(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

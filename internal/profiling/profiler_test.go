package profiling

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readTimings(t *testing.T, path string) []Timing {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read timings: %v", err)
	}
	var timings []Timing
	dec := json.NewDecoder(strings.NewReader(string(data)))
	for dec.More() {
		var tm Timing
		if err := dec.Decode(&tm); err != nil {
			t.Fatalf("decode timing: %v", err)
		}
		timings = append(timings, tm)
	}
	return timings
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"minimal":  LevelMinimal,
		"detailed": LevelDetailed,
		"off":      LevelOff,
		"":         LevelOff,
		"trace":    LevelOff,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestOffIsNil(t *testing.T) {
	p, err := Open(filepath.Join(t.TempDir(), "p.jsonl"), LevelOff)
	if err != nil || p != nil {
		t.Fatalf("got %v, %v", p, err)
	}
	// nil profiler is usable
	p.Start(1, "tick", LevelMinimal)(nil)
	p.Record(1, "tick", time.Now(), time.Millisecond, nil)
	if p.Enabled(LevelMinimal) || p.Level() != LevelOff || p.Close() != nil {
		t.Error("nil profiler misbehaves")
	}
}

func TestEnabledByLevel(t *testing.T) {
	dir := t.TempDir()
	minimal, _ := Open(filepath.Join(dir, "m.jsonl"), LevelMinimal)
	detailed, _ := Open(filepath.Join(dir, "d.jsonl"), LevelDetailed)
	defer minimal.Close()
	defer detailed.Close()

	if !minimal.Enabled(LevelMinimal) || minimal.Enabled(LevelDetailed) {
		t.Error("minimal level wrong")
	}
	if !detailed.Enabled(LevelMinimal) || !detailed.Enabled(LevelDetailed) {
		t.Error("detailed level wrong")
	}
}

func TestStartRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system", "profile.jsonl")
	p, err := Open(path, LevelMinimal)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	done := p.Start(7, "tick", LevelMinimal)
	time.Sleep(2 * time.Millisecond)
	done(map[string]any{"mode": "deep_work"})
	p.Start(7, "classify", LevelDetailed)(nil) // filtered out
	p.Close()

	timings := readTimings(t, path)
	if len(timings) != 1 {
		t.Fatalf("got %d timings, want 1", len(timings))
	}
	tm := timings[0]
	if tm.Tick != 7 || tm.Stage != "tick" || tm.DurationMs < 1 {
		t.Errorf("got %+v", tm)
	}
	if tm.Metadata["mode"] != "deep_work" {
		t.Errorf("metadata: %v", tm.Metadata)
	}
}

// Package profiling records how long each analysis tick and its stages take,
// as JSONL, so slow desktop queries or backends show up without a debugger.
package profiling

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level determines how detailed the profiling is
type Level string

const (
	LevelOff      Level = "off"      // Nothing recorded
	LevelMinimal  Level = "minimal"  // Whole ticks only
	LevelDetailed Level = "detailed" // Ticks plus classify/environment stages
)

// ParseLevel maps a config string to a Level; unknown values mean off
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelMinimal, LevelDetailed:
		return Level(s)
	default:
		return LevelOff
	}
}

// Timing is a single measurement
type Timing struct {
	Tick       uint64         `json:"tick"`
	Stage      string         `json:"stage"`
	StartTime  time.Time      `json:"start_time"`
	DurationMs float64        `json:"duration_ms"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Profiler appends timings to a file. A nil *Profiler is valid and records
// nothing.
type Profiler struct {
	level Level
	mu    sync.Mutex
	file  *os.File
	enc   *json.Encoder
}

// Open creates a profiler writing to path. LevelOff returns nil.
func Open(path string, level Level) (*Profiler, error) {
	if level == LevelOff {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create profiling directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open profiling log: %w", err)
	}
	return &Profiler{level: level, file: f, enc: json.NewEncoder(f)}, nil
}

// Close closes the log file
func (p *Profiler) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.file.Close()
}

// Level returns the configured level
func (p *Profiler) Level() Level {
	if p == nil {
		return LevelOff
	}
	return p.level
}

// Enabled reports whether measurements at level are kept
func (p *Profiler) Enabled(level Level) bool {
	switch p.Level() {
	case LevelDetailed:
		return level == LevelMinimal || level == LevelDetailed
	case LevelMinimal:
		return level == LevelMinimal
	default:
		return false
	}
}

// Start begins timing a stage and returns a function to call when done
func (p *Profiler) Start(tick uint64, stage string, level Level) func(metadata map[string]any) {
	if !p.Enabled(level) {
		return func(map[string]any) {}
	}
	start := time.Now()
	return func(metadata map[string]any) {
		p.Record(tick, stage, start, time.Since(start), metadata)
	}
}

// Record writes one measurement
func (p *Profiler) Record(tick uint64, stage string, start time.Time, d time.Duration, metadata map[string]any) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.enc.Encode(Timing{
		Tick:       tick,
		Stage:      stage,
		StartTime:  start,
		DurationMs: float64(d.Nanoseconds()) / 1e6,
		Metadata:   metadata,
	})
}

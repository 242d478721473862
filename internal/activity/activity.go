// Package activity is the append-only journal of what ambientflow noticed
// and did: mode changes, warnings, breaks, reminders, environment changes.
package activity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vthunder/ambientflow/internal/types"
)

// Type identifies what kind of activity this is
type Type string

const (
	TypeModeChange      Type = "mode_change"     // Classifier switched modes
	TypeProcrastination Type = "procrastination" // Entertainment warning fired
	TypeBreak           Type = "break"           // Break started or due
	TypeReminder        Type = "reminder"        // Reminder fired
	TypeEnvironment     Type = "environment"     // Sound/display/notification change
	TypeError           Type = "error"           // Something went wrong
)

// Entry represents a single activity log entry
type Entry struct {
	Timestamp time.Time      `json:"ts"`
	Type      Type           `json:"type"`
	Summary   string         `json:"summary"`
	Mode      types.UserMode `json:"mode,omitempty"` // Mode at the time of the entry
	App       string         `json:"app,omitempty"`  // Foreground app if relevant
	Data      map[string]any `json:"data,omitempty"` // Structured details
}

// Log is the activity logger
type Log struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New creates an activity logger
func New(statePath string) *Log {
	return &Log{
		path: filepath.Join(statePath, "system", "activity.jsonl"),
		now:  time.Now,
	}
}

// SetClock replaces the source of default timestamps
func (l *Log) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Path returns the journal file path
func (l *Log) Path() string {
	return l.path
}

// Log appends an entry to the activity log
func (l *Log) Log(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Helper methods for common event types

// LogModeChange records a transition between user modes
func (l *Log) LogModeChange(from, to types.UserMode, confidence float64, app string) error {
	return l.Log(Entry{
		Type:    TypeModeChange,
		Summary: string(from) + " -> " + string(to),
		Mode:    to,
		App:     app,
		Data: map[string]any{
			"from":       string(from),
			"confidence": confidence,
		},
	})
}

// LogProcrastination records an active entertainment warning
func (l *Log) LogProcrastination(message string, minutes int, app string) error {
	return l.Log(Entry{
		Type:    TypeProcrastination,
		Summary: message,
		Mode:    types.ModeEntertainment,
		App:     app,
		Data: map[string]any{
			"minutes": minutes,
		},
	})
}

// LogBreak records a break, started by the user or flagged as due
func (l *Log) LogBreak(summary string, workMinutes int) error {
	return l.Log(Entry{
		Type:    TypeBreak,
		Summary: summary,
		Data: map[string]any{
			"work_minutes": workMinutes,
		},
	})
}

// LogReminder records a fired reminder
func (l *Log) LogReminder(id, message string) error {
	return l.Log(Entry{
		Type:    TypeReminder,
		Summary: message,
		Data: map[string]any{
			"id": id,
		},
	})
}

// LogEnvironment records an applied environment
func (l *Log) LogEnvironment(mode types.UserMode, state types.EnvironmentState) error {
	return l.Log(Entry{
		Type:    TypeEnvironment,
		Summary: "environment for " + string(mode),
		Mode:    mode,
		Data: map[string]any{
			"sound":       string(state.Sound),
			"volume":      state.SoundVolume,
			"night_mode":  state.NightModeActive,
			"temperature": state.ColorTemperature,
			"filtered":    state.NotificationsFiltered,
			"focus":       state.FocusMode,
		},
	})
}

// LogError logs an error
func (l *Log) LogError(summary string, err error, data map[string]any) error {
	if data == nil {
		data = make(map[string]any)
	}
	data["error"] = err.Error()
	return l.Log(Entry{
		Type:    TypeError,
		Summary: summary,
		Data:    data,
	})
}

// Query methods

// Recent returns the last n entries
func (l *Log) Recent(n int) ([]Entry, error) {
	entries, err := l.readAll()
	if err != nil {
		return nil, err
	}

	if n >= len(entries) {
		return entries, nil
	}
	return entries[len(entries)-n:], nil
}

// Today returns entries from today
func (l *Log) Today() ([]Entry, error) {
	l.mu.Lock()
	now := l.now()
	l.mu.Unlock()
	return l.Day(now)
}

// Day returns entries from the calendar day containing t
func (l *Log) Day(t time.Time) ([]Entry, error) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return l.Range(start, start.AddDate(0, 0, 1).Add(-time.Nanosecond))
}

// Search searches entries by text (in summary and data), newest first
func (l *Log) Search(query string, limit int) ([]Entry, error) {
	entries, err := l.readAll()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var result []Entry

	for i := len(entries) - 1; i >= 0 && len(result) < limit; i-- {
		e := entries[i]
		if strings.Contains(strings.ToLower(e.Summary), query) ||
			strings.Contains(strings.ToLower(e.App), query) {
			result = append(result, e)
			continue
		}
		if e.Data != nil {
			dataJSON, _ := json.Marshal(e.Data)
			if strings.Contains(strings.ToLower(string(dataJSON)), query) {
				result = append(result, e)
			}
		}
	}

	return result, nil
}

// ByType returns entries of a specific type, newest first
func (l *Log) ByType(t Type, limit int) ([]Entry, error) {
	entries, err := l.readAll()
	if err != nil {
		return nil, err
	}

	var result []Entry
	for i := len(entries) - 1; i >= 0 && len(result) < limit; i-- {
		if entries[i].Type == t {
			result = append(result, entries[i])
		}
	}
	return result, nil
}

// Range returns entries in a time range (inclusive)
func (l *Log) Range(start, end time.Time) ([]Entry, error) {
	entries, err := l.readAll()
	if err != nil {
		return nil, err
	}

	var result []Entry
	for _, e := range entries {
		if !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			result = append(result, e)
		}
	}
	return result, nil
}

// ModeMinutes replays mode_change entries in [start, end] and returns the
// minutes spent per mode. The last mode runs until end.
func (l *Log) ModeMinutes(start, end time.Time) (map[types.UserMode]int, error) {
	entries, err := l.Range(start, end)
	if err != nil {
		return nil, err
	}

	out := make(map[types.UserMode]int)
	var cur types.UserMode
	var since time.Time
	for _, e := range entries {
		if e.Type != TypeModeChange {
			continue
		}
		if cur != "" {
			out[cur] += int(e.Timestamp.Sub(since).Minutes())
		}
		cur, since = e.Mode, e.Timestamp
	}
	if cur != "" {
		out[cur] += int(end.Sub(since).Minutes())
	}
	return out, nil
}

// readAll reads all entries from the log file
func (l *Log) readAll() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue // skip malformed entries
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

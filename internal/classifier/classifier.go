// Package classifier turns activity snapshots into a user mode, tracks the
// running work session and warns about entertainment during work hours.
package classifier

import (
	"sync"
	"time"

	"github.com/vthunder/ambientflow/internal/clock"
	"github.com/vthunder/ambientflow/internal/config"
	"github.com/vthunder/ambientflow/internal/logging"
	"github.com/vthunder/ambientflow/internal/types"
)

const (
	DefaultBreakAfter = 50 // minutes

	historyLimit = 1000
	historyKeep  = 500
)

// WarningCallback receives the message and entertainment minutes of each
// active procrastination warning
type WarningCallback func(message string, minutes int)

// State is everything the classifier remembers between ticks
type State struct {
	WorkSessionStart *time.Time
	DwellStart       *time.Time // entered entertainment during work hours
	LastWarning      *time.Time
	LastMode         types.UserMode
	History          []types.ModeEntry
}

// NewState returns the state of a fresh classifier
func NewState() State {
	return State{LastMode: types.ModeIdle}
}

// Rules is the policy one Step applies
type Rules struct {
	Patterns          Patterns
	BreakAfterMinutes int
	Procrastination   config.ProcrastinationSettings

	// Message picks the warning text; nil uses the built-in pool
	Message func(minutes int) string
}

// Step runs one analysis against st and returns the updated state and the
// result. It has no side effects.
func Step(st State, snap types.ActivitySnapshot, now time.Time, rules Rules) (State, types.AnalysisResult) {
	if rules.BreakAfterMinutes <= 0 {
		rules.BreakAfterMinutes = DefaultBreakAfter
	}

	mode, confidence := Detect(snap, rules.Patterns)

	// Work session. Communication neither opens nor closes one; a session
	// ends only on a direct step from a work mode into a rest mode.
	switch {
	case mode.IsWork():
		if st.WorkSessionStart == nil {
			start := now
			st.WorkSessionStart = &start
		}
	case mode == types.ModeCommunication:
	case mode.IsRest() && st.LastMode.IsWork():
		st.WorkSessionStart = nil
	}

	minutes := 0
	if st.WorkSessionStart != nil {
		minutes = int(now.Sub(*st.WorkSessionStart).Minutes())
		if minutes < 0 {
			minutes = 0
		}
	}

	var procrastination types.Procrastination
	st, procrastination = checkProcrastination(st, mode, now, rules)

	st.LastMode = mode
	st.History = appendHistory(st.History, types.ModeEntry{Timestamp: now, Mode: mode})

	tod := types.TimeOfDayAt(now)
	return st, types.AnalysisResult{
		Mode:               mode,
		Confidence:         confidence,
		TimeOfDay:          tod,
		WorkSessionMinutes: minutes,
		ShouldTakeBreak:    minutes >= rules.BreakAfterMinutes,
		Recommendations:    Recommend(mode, tod, minutes),
		Procrastination:    procrastination,
		Timestamp:          now,
	}
}

// appendHistory never writes into h's backing array, so states handed to
// Step stay valid after it returns
func appendHistory(h []types.ModeEntry, e types.ModeEntry) []types.ModeEntry {
	h = append(h[:len(h):len(h)], e)
	if len(h) > historyLimit {
		kept := make([]types.ModeEntry, historyKeep)
		copy(kept, h[len(h)-historyKeep:])
		h = kept
	}
	return h
}

// Classifier owns a State and serializes access to it
type Classifier struct {
	mu              sync.Mutex
	state           State
	patterns        Patterns
	procrastination config.ProcrastinationSettings
	onWarning       WarningCallback
	clock           clock.Clock
}

// New creates a classifier using patterns and clk (nil means wall clock)
func New(patterns Patterns, clk clock.Clock) *Classifier {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Classifier{
		state:           NewState(),
		patterns:        patterns,
		procrastination: config.DefaultProcrastination(),
		clock:           clk,
	}
}

// Analyze classifies snap at the current time and advances the state. The
// warning callback, if any, runs after the state lock is released.
func (c *Classifier) Analyze(snap types.ActivitySnapshot, breakAfterMinutes int) types.AnalysisResult {
	c.mu.Lock()
	rules := Rules{
		Patterns:          c.patterns,
		BreakAfterMinutes: breakAfterMinutes,
		Procrastination:   c.procrastination,
	}
	var result types.AnalysisResult
	c.state, result = Step(c.state, snap, c.clock.Now(), rules)
	cb := c.onWarning
	c.mu.Unlock()

	if result.Procrastination.Active {
		logging.Info("classifier", "Procrastination warning after %d min", result.Procrastination.EntertainmentMinutes)
		if cb != nil {
			fireWarning(cb, result.Procrastination)
		}
	}
	return result
}

func fireWarning(cb WarningCallback, p types.Procrastination) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("classifier", "warning callback panicked: %v", r)
		}
	}()
	cb(p.Message, p.EntertainmentMinutes)
}

// SetProcrastination replaces the warning policy. Malformed values fall
// back to defaults.
func (c *Classifier) SetProcrastination(p config.ProcrastinationSettings) {
	p = config.NormalizeProcrastination(p)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.procrastination = p
	if !p.Enabled {
		c.state.DwellStart = nil
	}
}

// Procrastination returns the current warning policy
func (c *Classifier) Procrastination() config.ProcrastinationSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.procrastination
}

// SetWarningCallback registers cb for active warnings (nil removes it)
func (c *Classifier) SetWarningCallback(cb WarningCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onWarning = cb
}

// SetPatterns swaps the detection tables
func (c *Classifier) SetPatterns(p Patterns) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = p
}

// History returns a copy of the mode history, oldest first
func (c *Classifier) History() []types.ModeEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.ModeEntry, len(c.state.History))
	copy(out, c.state.History)
	return out
}

// LastMode returns the mode of the most recent analysis
func (c *Classifier) LastMode() types.UserMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.LastMode
}

// DwellMinutes returns how long the current entertainment stretch has
// lasted, 0 when none is being timed
func (c *Classifier) DwellMinutes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.DwellStart == nil {
		return 0
	}
	return int(c.clock.Now().Sub(*c.state.DwellStart).Minutes())
}

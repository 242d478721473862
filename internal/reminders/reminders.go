// Package reminders fires periodic wellbeing reminders (water, stretch,
// eyes, custom) and lets the user snooze or dismiss them.
package reminders

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vthunder/ambientflow/internal/clock"
	"github.com/vthunder/ambientflow/internal/config"
	"github.com/vthunder/ambientflow/internal/logging"
)

const (
	PollInterval  = 10 * time.Second
	DefaultSnooze = 10 // minutes

	customPrefix = "custom_"
	stopGrace    = 2 * time.Second
)

// Listener is called for every fired reminder
type Listener func(config.ReminderItem)

type itemState struct {
	since        time.Time // interval counts from here until the first trigger
	lastFired    time.Time
	snoozeUntil  time.Time
	triggerCount int
}

// Status describes one reminder for display
type Status struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Enabled         bool   `json:"enabled"`
	IntervalMinutes int    `json:"interval_minutes"`
	Message         string `json:"message"`
	Icon            string `json:"icon"`
	NextInSeconds   *int   `json:"next_in_seconds"` // nil when disabled
	TriggerCount    int    `json:"trigger_count"`
	Snoozed         bool   `json:"snoozed"`
}

// Overview is the state of all reminders
type Overview struct {
	Enabled   bool     `json:"enabled"`
	Reminders []Status `json:"reminders"`
}

// Manager schedules reminders
type Manager struct {
	isIdle func() bool
	clock  clock.Clock

	mu        sync.Mutex
	settings  config.ReminderSettings
	states    map[string]*itemState
	listeners []Listener

	ctlMu    sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a manager. isIdle may be nil (never idle).
func New(settings config.ReminderSettings, isIdle func() bool, clk clock.Clock) *Manager {
	if isIdle == nil {
		isIdle = func() bool { return false }
	}
	if clk == nil {
		clk = clock.Real{}
	}
	m := &Manager{
		isIdle:   isIdle,
		clock:    clk,
		settings: cloneSettings(settings),
		states:   make(map[string]*itemState),
	}
	m.syncStates()
	return m
}

func cloneSettings(s config.ReminderSettings) config.ReminderSettings {
	s.Items = append([]config.ReminderItem(nil), s.Items...)
	return s
}

// syncStates creates state for new items and drops state of removed ones.
// Caller holds m.mu (or owns m exclusively).
func (m *Manager) syncStates() {
	now := m.clock.Now()
	keep := make(map[string]bool, len(m.settings.Items))
	for _, it := range m.settings.Items {
		keep[it.ID] = true
		if _, ok := m.states[it.ID]; !ok {
			m.states[it.ID] = &itemState{since: now}
		}
	}
	for id := range m.states {
		if !keep[id] {
			delete(m.states, id)
		}
	}
}

// AddListener registers fn for fired reminders
func (m *Manager) AddListener(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Check fires every reminder whose interval has elapsed and returns them.
// Nothing fires while reminders are disabled or while the user is idle and
// PauseWhenIdle is set.
func (m *Manager) Check() []config.ReminderItem {
	m.mu.Lock()
	if !m.settings.Enabled || (m.settings.PauseWhenIdle && m.isIdle()) {
		m.mu.Unlock()
		return nil
	}

	now := m.clock.Now()
	var fired []config.ReminderItem
	for _, it := range m.settings.Items {
		if !it.Enabled {
			continue
		}
		st := m.states[it.ID]
		if st == nil {
			st = &itemState{since: now}
			m.states[it.ID] = st
		}
		if now.Before(st.snoozeUntil) {
			continue
		}
		ref := st.lastFired
		if ref.IsZero() {
			ref = st.since
		}
		if now.Sub(ref) >= interval(it) {
			st.lastFired = now
			st.snoozeUntil = time.Time{}
			st.triggerCount++
			fired = append(fired, it)
		}
	}
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, it := range fired {
		logging.Info("reminders", "%s: %s", it.Name, it.Message)
		for _, fn := range listeners {
			notify(fn, it)
		}
	}
	return fired
}

func interval(it config.ReminderItem) time.Duration {
	return time.Duration(it.IntervalMinutes) * time.Minute
}

func notify(fn Listener, it config.ReminderItem) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("reminders", "listener panicked: %v", r)
		}
	}()
	fn(it)
}

// Snooze postpones a reminder by minutes (DefaultSnooze when <= 0). It
// reports whether the reminder exists.
func (m *Manager) Snooze(id string, minutes int) bool {
	if minutes <= 0 {
		minutes = DefaultSnooze
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	if !ok {
		return false
	}
	st.snoozeUntil = m.clock.Now().Add(time.Duration(minutes) * time.Minute)
	return true
}

// Dismiss marks a reminder done, restarting its interval
func (m *Manager) Dismiss(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	if !ok {
		return false
	}
	st.lastFired = m.clock.Now()
	st.snoozeUntil = time.Time{}
	return true
}

// Status reports every reminder with the time until it next fires
func (m *Manager) Status() Overview {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	out := Overview{Enabled: m.settings.Enabled, Reminders: make([]Status, 0, len(m.settings.Items))}
	for _, it := range m.settings.Items {
		st := m.states[it.ID]
		if st == nil {
			st = &itemState{since: now}
		}
		s := Status{
			ID:              it.ID,
			Name:            it.Name,
			Enabled:         it.Enabled,
			IntervalMinutes: it.IntervalMinutes,
			Message:         it.Message,
			Icon:            it.Icon,
			TriggerCount:    st.triggerCount,
			Snoozed:         now.Before(st.snoozeUntil),
		}
		if it.Enabled {
			var next time.Duration
			if s.Snoozed {
				next = st.snoozeUntil.Sub(now)
			} else {
				ref := st.lastFired
				if ref.IsZero() {
					ref = st.since
				}
				next = max(0, interval(it)-now.Sub(ref))
			}
			secs := int(next.Seconds())
			s.NextInSeconds = &secs
		}
		out.Reminders = append(out.Reminders, s)
	}
	return out
}

// Settings returns a copy of the current settings
func (m *Manager) Settings() config.ReminderSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSettings(m.settings)
}

// UpdateSettings replaces the reminder list. Timers of reminders that
// survive the update are kept.
func (m *Manager) UpdateSettings(s config.ReminderSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = cloneSettings(s)
	m.syncStates()
}

// AddCustom adds an enabled custom reminder and returns it
func (m *Manager) AddCustom(name string, intervalMinutes int, message, icon string) config.ReminderItem {
	if intervalMinutes <= 0 {
		intervalMinutes = 30
	}
	if icon == "" {
		icon = "bell"
	}
	it := config.ReminderItem{
		ID:              customPrefix + uuid.NewString(),
		Name:            name,
		Enabled:         true,
		IntervalMinutes: intervalMinutes,
		Message:         message,
		Icon:            icon,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.Items = append(m.settings.Items, it)
	m.states[it.ID] = &itemState{since: m.clock.Now()}
	return it
}

// RemoveCustom deletes a custom reminder. Built-in reminders cannot be
// removed, only disabled.
func (m *Manager) RemoveCustom(id string) bool {
	if !strings.HasPrefix(id, customPrefix) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.settings.Items {
		if it.ID == id {
			m.settings.Items = append(m.settings.Items[:i], m.settings.Items[i+1:]...)
			delete(m.states, id)
			return true
		}
	}
	return false
}

// Start begins polling every PollInterval. Starting twice does nothing.
func (m *Manager) Start() {
	m.ctlMu.Lock()
	defer m.ctlMu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(m.stopChan, m.done)
	logging.Info("reminders", "Started")
}

// Stop halts polling, waiting up to two seconds
func (m *Manager) Stop() {
	done := m.Halt()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(stopGrace):
		logging.Warn("reminders", "loop did not exit within %v", stopGrace)
	}
	logging.Info("reminders", "Stopped")
}

// Halt signals the poll loop to stop and returns a channel closed when it
// has exited, or nil if it was not running
func (m *Manager) Halt() <-chan struct{} {
	m.ctlMu.Lock()
	defer m.ctlMu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopChan)
	return m.done
}

func (m *Manager) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

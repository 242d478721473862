// Package orchestrator wires the sampler, classifier, environment
// controller and reminders together and runs their loops.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vthunder/ambientflow/internal/activity"
	"github.com/vthunder/ambientflow/internal/classifier"
	"github.com/vthunder/ambientflow/internal/clock"
	"github.com/vthunder/ambientflow/internal/config"
	"github.com/vthunder/ambientflow/internal/environment"
	"github.com/vthunder/ambientflow/internal/logging"
	"github.com/vthunder/ambientflow/internal/osenv"
	"github.com/vthunder/ambientflow/internal/profiling"
	"github.com/vthunder/ambientflow/internal/reminders"
	"github.com/vthunder/ambientflow/internal/sampler"
	"github.com/vthunder/ambientflow/internal/types"
	"github.com/vthunder/ambientflow/internal/usage"
)

const (
	maxPendingAlerts = 5
	stopGrace        = 2 * time.Second
)

// Deps are the collaborators the orchestrator drives. Journal, Store,
// Profiler and ConfigPath are optional; without ConfigPath runtime changes
// are not saved.
type Deps struct {
	Probe    osenv.Probe
	Display  osenv.Display
	Player   osenv.Player
	Notifier osenv.Notifier
	Clock    clock.Clock
	Journal  *activity.Log
	Store    *usage.Store
	Profiler *profiling.Profiler

	ConfigPath string
}

// AlertKind distinguishes queued alerts
type AlertKind string

const (
	AlertReminder        AlertKind = "reminder"
	AlertProcrastination AlertKind = "procrastination"
	AlertBreak           AlertKind = "break"
)

// Alert is a user-facing notice waiting to be picked up by a UI
type Alert struct {
	Kind      AlertKind `json:"kind"`
	ID        string    `json:"id,omitempty"` // reminder id
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Icon      string    `json:"icon,omitempty"`
	Minutes   int       `json:"minutes,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// Orchestrator owns the running pipeline
type Orchestrator struct {
	sampler    *sampler.Sampler
	classifier *classifier.Classifier
	env        *environment.Controller
	reminders  *reminders.Manager
	ledger     *usage.Ledger
	journal    *activity.Log
	profiler   *profiling.Profiler
	clock      clock.Clock
	ticks      atomic.Uint64
	configPath string

	cfgMu sync.RWMutex
	cfg   config.Config

	mu        sync.RWMutex
	latest    types.AnalysisResult
	hasLatest bool

	alertsMu sync.Mutex
	alerts   []Alert

	warnMu    sync.Mutex
	onWarning []classifier.WarningCallback

	ctlMu    sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// New builds the pipeline from cfg. It does not start any loop.
func New(cfg config.Config, deps Deps) (*Orchestrator, error) {
	if deps.Probe == nil || deps.Display == nil || deps.Player == nil || deps.Notifier == nil {
		return nil, errors.New("orchestrator: probe, display, player and notifier are required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	cfg.Normalize()
	if deps.Journal != nil {
		deps.Journal.SetClock(deps.Clock.Now)
	}

	o := &Orchestrator{
		ledger:     usage.NewLedger(),
		journal:    deps.Journal,
		profiler:   deps.Profiler,
		clock:      deps.Clock,
		cfg:        cfg,
		configPath: deps.ConfigPath,
	}

	if deps.Store != nil {
		store := deps.Store
		o.ledger.SetSink(func(s usage.Session) {
			if err := store.Record(s); err != nil {
				logging.Warn("orchestrator", "usage store: %v", err)
			}
		})
	}

	o.sampler = sampler.New(deps.Probe, o.ledger, deps.Clock, sampler.Config{
		Interval:      time.Duration(cfg.Tracking.SampleIntervalMs) * time.Millisecond,
		IdleThreshold: cfg.Tracking.IdleThresholdSeconds,
	})

	o.classifier = classifier.New(classifier.PatternsFromConfig(cfg.Patterns), deps.Clock)
	o.classifier.SetProcrastination(cfg.Procrastination)
	o.classifier.SetWarningCallback(o.handleWarning)

	o.env = environment.New(environment.SettingsFrom(cfg), deps.Display, deps.Player, deps.Notifier)
	o.env.SetAutoAdjust(cfg.AutoAdjust)

	o.reminders = reminders.New(cfg.Reminders, o.sampler.IsIdle, deps.Clock)
	o.reminders.AddListener(o.handleReminder)

	return o, nil
}

// Start launches the sampler, reminders and analysis loops. Starting a
// running orchestrator does nothing.
func (o *Orchestrator) Start() {
	o.ctlMu.Lock()
	defer o.ctlMu.Unlock()
	if o.running {
		return
	}
	o.running = true
	o.stopChan = make(chan struct{})
	o.done = make(chan struct{})

	o.sampler.Start()
	o.reminders.Start()
	go o.analysisLoop(o.stopChan, o.done, o.analysisInterval())

	logging.Info("orchestrator", "Started")
}

// Stop signals every loop at once, waits for them under one shared grace
// period, then closes the usage session and resets the environment. It is
// safe to call more than once and from a signal handler.
func (o *Orchestrator) Stop() {
	o.ctlMu.Lock()
	if !o.running {
		o.ctlMu.Unlock()
		return
	}
	o.running = false
	close(o.stopChan)
	done := o.done
	o.ctlMu.Unlock()

	loops := []stoppingLoop{
		{"analysis", done},
		{"reminders", o.reminders.Halt()},
		{"sampler", o.sampler.Halt()},
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	for _, name := range awaitLoops(ctx, loops) {
		logging.Warn("orchestrator", "%s loop did not exit within %v", name, stopGrace)
	}

	o.sampler.CloseSession()
	o.env.Reset()
	logging.Info("orchestrator", "Stopped")
}

type stoppingLoop struct {
	name string
	done <-chan struct{}
}

// awaitLoops waits for every loop until ctx is done and returns the names
// of those still running. A nil done channel counts as already stopped.
func awaitLoops(ctx context.Context, loops []stoppingLoop) []string {
	var stuck []string
	for _, l := range loops {
		if l.done == nil {
			continue
		}
		select {
		case <-l.done:
		case <-ctx.Done():
			stuck = append(stuck, l.name)
		}
	}
	return stuck
}

// Running reports whether the loops are active
func (o *Orchestrator) Running() bool {
	o.ctlMu.Lock()
	defer o.ctlMu.Unlock()
	return o.running
}

func (o *Orchestrator) analysisInterval() time.Duration {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	return time.Duration(o.cfg.Tracking.AnalysisIntervalMs) * time.Millisecond
}

func (o *Orchestrator) analysisLoop(stop <-chan struct{}, done chan<- struct{}, interval time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			o.safeTick()
		}
	}
}

func (o *Orchestrator) safeTick() {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("orchestrator", "analysis tick panicked: %v", r)
		}
	}()
	o.Tick()
}

// Tick runs one analysis on the latest snapshot and applies it
func (o *Orchestrator) Tick() types.AnalysisResult {
	tick := o.ticks.Add(1)
	doneTick := o.profiler.Start(tick, "tick", profiling.LevelMinimal)
	snap := o.sampler.Snapshot()

	o.cfgMu.RLock()
	breakAfter := o.cfg.Breaks.WorkDurationMinutes
	breaksEnabled := o.cfg.Breaks.Enabled
	o.cfgMu.RUnlock()

	doneClassify := o.profiler.Start(tick, "classify", profiling.LevelDetailed)
	result := o.classifier.Analyze(snap, breakAfter)
	doneClassify(nil)

	o.mu.Lock()
	prev, had := o.latest, o.hasLatest
	o.latest = result
	o.hasLatest = true
	o.mu.Unlock()

	if !had || prev.Mode != result.Mode {
		from := types.ModeIdle
		if had {
			from = prev.Mode
		}
		logging.Info("orchestrator", "Mode %s -> %s (%.2f) app=%s window=%q", from, result.Mode, result.Confidence,
			snap.CurrentApp, logging.Truncate(snap.CurrentWindow, 60))
		o.record(func(j *activity.Log) error {
			return j.LogModeChange(from, result.Mode, result.Confidence, snap.CurrentApp)
		})
	}

	doneEnv := o.profiler.Start(tick, "environment", profiling.LevelDetailed)
	changed := o.env.ApplyForMode(result)
	doneEnv(map[string]any{"changed": changed})
	if changed {
		state := o.env.State()
		o.record(func(j *activity.Log) error { return j.LogEnvironment(result.Mode, state) })
	}

	if breaksEnabled && result.ShouldTakeBreak && !(had && prev.ShouldTakeBreak) {
		msg := fmt.Sprintf("You've been working for %d minutes. Time for a break.", result.WorkSessionMinutes)
		o.pushAlert(Alert{
			Kind:      AlertBreak,
			Title:     "Break",
			Message:   msg,
			Icon:      "coffee",
			Minutes:   result.WorkSessionMinutes,
			Timestamp: result.Timestamp,
		})
		o.record(func(j *activity.Log) error { return j.LogBreak("break due", result.WorkSessionMinutes) })
	}

	doneTick(map[string]any{"mode": string(result.Mode), "app": snap.CurrentApp})
	return result
}

// handleWarning runs synchronously inside Analyze for each active warning
func (o *Orchestrator) handleWarning(message string, minutes int) {
	o.pushAlert(Alert{
		Kind:      AlertProcrastination,
		Title:     "Procrastination",
		Message:   message,
		Icon:      "hourglass",
		Minutes:   minutes,
		Timestamp: o.clock.Now(),
	})
	app := o.sampler.Snapshot().CurrentApp
	o.record(func(j *activity.Log) error { return j.LogProcrastination(message, minutes, app) })

	o.warnMu.Lock()
	callbacks := append([]classifier.WarningCallback(nil), o.onWarning...)
	o.warnMu.Unlock()
	for _, cb := range callbacks {
		callWarning(cb, message, minutes)
	}
}

func callWarning(cb classifier.WarningCallback, message string, minutes int) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("orchestrator", "warning callback panicked: %v", r)
		}
	}()
	cb(message, minutes)
}

func (o *Orchestrator) handleReminder(it config.ReminderItem) {
	o.pushAlert(Alert{
		Kind:      AlertReminder,
		ID:        it.ID,
		Title:     it.Name,
		Message:   it.Message,
		Icon:      it.Icon,
		Timestamp: o.clock.Now(),
	})
	o.record(func(j *activity.Log) error { return j.LogReminder(it.ID, it.Message) })
}

// pushAlert queues a, dropping the oldest alert beyond the cap
func (o *Orchestrator) pushAlert(a Alert) {
	o.alertsMu.Lock()
	defer o.alertsMu.Unlock()
	o.alerts = append(o.alerts, a)
	if n := len(o.alerts); n > maxPendingAlerts {
		o.alerts = append([]Alert(nil), o.alerts[n-maxPendingAlerts:]...)
	}
}

// PendingAlerts returns queued alerts, oldest first, and clears the queue
func (o *Orchestrator) PendingAlerts() []Alert {
	o.alertsMu.Lock()
	defer o.alertsMu.Unlock()
	out := o.alerts
	o.alerts = nil
	return out
}

// record writes to the journal if there is one; failures are only logged
func (o *Orchestrator) record(fn func(*activity.Log) error) {
	if o.journal == nil {
		return
	}
	if err := fn(o.journal); err != nil {
		logging.Warn("orchestrator", "journal: %v", err)
	}
}

// Now returns the orchestrator's clock reading
func (o *Orchestrator) Now() time.Time {
	return o.clock.Now()
}

// Latest returns the most recent analysis, false before the first tick
func (o *Orchestrator) Latest() (types.AnalysisResult, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.latest, o.hasLatest
}

// Environment returns the current environment state
func (o *Orchestrator) Environment() types.EnvironmentState {
	return o.env.State()
}

// Activity returns the latest activity snapshot
func (o *Orchestrator) Activity() types.ActivitySnapshot {
	return o.sampler.Snapshot()
}

// History returns the classifier's mode history
func (o *Orchestrator) History() []types.ModeEntry {
	return o.classifier.History()
}

// StartBreak applies the break environment right away. Like any other
// adjustment it does nothing while auto-adjust is off.
func (o *Orchestrator) StartBreak() types.EnvironmentState {
	now := o.clock.Now()
	workMinutes := 0
	if latest, ok := o.Latest(); ok {
		workMinutes = latest.WorkSessionMinutes
	}
	changed := o.env.ApplyForMode(types.AnalysisResult{
		Mode:       types.ModeBreak,
		Confidence: 1.0,
		TimeOfDay:  types.TimeOfDayAt(now),
		Timestamp:  now,
	})
	if changed {
		state := o.env.State()
		o.record(func(j *activity.Log) error { return j.LogEnvironment(types.ModeBreak, state) })
	}
	logging.Info("orchestrator", "Break started after %d min of work", workMinutes)
	o.record(func(j *activity.Log) error { return j.LogBreak("break started", workMinutes) })
	return o.env.State()
}

// PlaySound switches the ambient track by hand. A negative volume uses the
// configured one. It works with auto-adjust off.
func (o *Orchestrator) PlaySound(kind types.AmbientSound, volume float64) types.EnvironmentState {
	if volume < 0 {
		o.cfgMu.RLock()
		volume = o.cfg.Sound.Volume
		o.cfgMu.RUnlock()
	}
	before := o.env.State()
	state := o.env.PlaySound(kind, volume)
	if state != before {
		mode := types.ModeIdle
		if latest, ok := o.Latest(); ok {
			mode = latest.Mode
		}
		o.record(func(j *activity.Log) error { return j.LogEnvironment(mode, state) })
	}
	return state
}

// SetAutoAdjust turns automatic environment changes on or off and saves
// the choice
func (o *Orchestrator) SetAutoAdjust(enabled bool) {
	o.env.SetAutoAdjust(enabled)
	o.cfgMu.Lock()
	o.cfg.AutoAdjust = enabled
	o.cfgMu.Unlock()
	o.persist()
}

// AutoAdjust reports whether automatic environment changes are on
func (o *Orchestrator) AutoAdjust() bool {
	return o.env.AutoAdjust()
}

// SetProcrastination replaces the warning policy
func (o *Orchestrator) SetProcrastination(p config.ProcrastinationSettings) config.ProcrastinationSettings {
	o.classifier.SetProcrastination(p)
	p = o.classifier.Procrastination()
	o.cfgMu.Lock()
	o.cfg.Procrastination = p
	o.cfgMu.Unlock()
	o.persist()
	return p
}

// Procrastination returns the warning policy
func (o *Orchestrator) Procrastination() config.ProcrastinationSettings {
	return o.classifier.Procrastination()
}

// ProcrastinationMinutes returns the current entertainment dwell
func (o *Orchestrator) ProcrastinationMinutes() int {
	return o.classifier.DwellMinutes()
}

// OnWarning registers cb for every procrastination warning
func (o *Orchestrator) OnWarning(cb classifier.WarningCallback) {
	o.warnMu.Lock()
	defer o.warnMu.Unlock()
	o.onWarning = append(o.onWarning, cb)
}

// Reminders exposes the reminder manager
func (o *Orchestrator) Reminders() *reminders.Manager {
	return o.reminders
}

// AddReminder adds a custom reminder and saves it to the config file
func (o *Orchestrator) AddReminder(name string, intervalMinutes int, message, icon string) config.ReminderItem {
	it := o.reminders.AddCustom(name, intervalMinutes, message, icon)
	o.persist()
	return it
}

// RemoveReminder deletes a custom reminder and saves the change
func (o *Orchestrator) RemoveReminder(id string) bool {
	if !o.reminders.RemoveCustom(id) {
		return false
	}
	o.persist()
	return true
}

// persist writes the effective configuration back to the config file so a
// later reload does not undo runtime changes. Failures are only logged.
func (o *Orchestrator) persist() {
	if o.configPath == "" {
		return
	}
	rs := o.reminders.Settings()
	o.cfgMu.Lock()
	o.cfg.Reminders = rs
	cfg := o.cfg
	o.cfgMu.Unlock()

	if err := config.Save(o.configPath, cfg); err != nil {
		logging.Warn("orchestrator", "saving config: %v", err)
		o.record(func(j *activity.Log) error {
			return j.LogError("saving config", err, map[string]any{"path": o.configPath})
		})
	}
}

// Journal returns the activity journal, nil if none
func (o *Orchestrator) Journal() *activity.Log {
	return o.journal
}

// Config returns a copy of the effective configuration
func (o *Orchestrator) Config() config.Config {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	return o.cfg
}

// ApplyConfig swaps in a reloaded configuration. Loop intervals keep their
// values until the next Start.
func (o *Orchestrator) ApplyConfig(cfg config.Config) {
	cfg.Normalize()
	o.cfgMu.Lock()
	o.cfg = cfg
	o.cfgMu.Unlock()

	o.sampler.SetIdleThreshold(cfg.Tracking.IdleThresholdSeconds)
	o.classifier.SetPatterns(classifier.PatternsFromConfig(cfg.Patterns))
	o.classifier.SetProcrastination(cfg.Procrastination)
	o.env.UpdateConfig(environment.SettingsFrom(cfg))
	o.env.SetAutoAdjust(cfg.AutoAdjust)
	o.reminders.UpdateSettings(cfg.Reminders)
	logging.Info("orchestrator", "Configuration applied")
}

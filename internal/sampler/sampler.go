// Package sampler polls the desktop once per tick and publishes an
// immutable ActivitySnapshot. It does not interpret what the user is doing.
package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/vthunder/ambientflow/internal/clock"
	"github.com/vthunder/ambientflow/internal/logging"
	"github.com/vthunder/ambientflow/internal/osenv"
	"github.com/vthunder/ambientflow/internal/types"
	"github.com/vthunder/ambientflow/internal/usage"
)

const (
	DefaultInterval      = time.Second
	DefaultIdleThreshold = 180 // seconds
	stopGrace            = 2 * time.Second
)

// Listener receives every published snapshot
type Listener func(types.ActivitySnapshot)

// Config holds sampler settings
type Config struct {
	Interval      time.Duration
	IdleThreshold int // seconds without input before the user counts as idle
}

// Sampler owns the sampling loop and the latest snapshot
type Sampler struct {
	probe  osenv.Probe
	ledger *usage.Ledger
	clock  clock.Clock

	interval time.Duration

	mu            sync.RWMutex
	snap          types.ActivitySnapshot
	idleThreshold int
	listeners     []Listener

	// serializes Sample so a manual call never interleaves with the loop
	sampleMu sync.Mutex

	// Control
	ctlMu    sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a sampler. ledger may be nil when usage is not tracked.
func New(probe osenv.Probe, ledger *usage.Ledger, clk clock.Clock, cfg Config) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = DefaultIdleThreshold
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Sampler{
		probe:         probe,
		ledger:        ledger,
		clock:         clk,
		interval:      cfg.Interval,
		idleThreshold: cfg.IdleThreshold,
		snap:          types.ActivitySnapshot{ActivityLevel: types.LevelNormal},
	}
}

// AddListener registers fn to receive every snapshot
func (s *Sampler) AddListener(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SetIdleThreshold changes the idle threshold from the next tick on
func (s *Sampler) SetIdleThreshold(seconds int) {
	if seconds <= 0 {
		return
	}
	s.mu.Lock()
	s.idleThreshold = seconds
	s.mu.Unlock()
}

// Snapshot returns the latest snapshot
func (s *Sampler) Snapshot() types.ActivitySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// IsIdle reports whether the latest snapshot says the user is away
func (s *Sampler) IsIdle() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.IsIdle
}

// Sample queries the probe once and publishes the result. A failed query
// keeps the previous snapshot's fields for that signal.
func (s *Sampler) Sample() types.ActivitySnapshot {
	s.sampleMu.Lock()
	defer s.sampleMu.Unlock()

	s.mu.RLock()
	next := s.snap
	threshold := s.idleThreshold
	s.mu.RUnlock()

	now := s.clock.Now()
	next.Timestamp = now

	// all queries of one tick share a deadline inside the tick period
	ctx, cancel := context.WithTimeout(context.Background(), s.queryBudget())
	defer cancel()

	if idle, err := s.probe.IdleSeconds(ctx); err != nil {
		logging.Debug("sampler", "idle query failed: %v", err)
	} else {
		if idle < 0 {
			idle = 0
		}
		next.IdleSeconds = idle
		next.IsIdle = idle > threshold
		next.KeyboardActive = idle < 2
		next.MouseActive = idle < 5
		next.ActivityLevel = types.LevelFor(idle, threshold)
	}

	if app, title, err := s.probe.ForegroundApp(ctx); err != nil {
		logging.Debug("sampler", "foreground query failed: %v", err)
	} else {
		next.CurrentApp = osenv.NormalizeApp(app)
		next.CurrentWindow = title
	}

	if !next.IsIdle && s.ledger != nil {
		s.ledger.Switch(next.CurrentApp, now)
	}

	s.mu.Lock()
	s.snap = next
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		notify(fn, next)
	}
	return next
}

func (s *Sampler) queryBudget() time.Duration {
	return s.interval * 9 / 10
}

func notify(fn Listener, snap types.ActivitySnapshot) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("sampler", "listener panicked: %v", r)
		}
	}()
	fn(snap)
}

// Start begins sampling on the configured interval. Calling Start on a
// running sampler does nothing.
func (s *Sampler) Start() {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stopChan, s.done)
	logging.Info("sampler", "Started (interval=%v)", s.interval)
}

// Stop halts the loop and waits up to two seconds for it to exit, then
// closes the open usage session. Stopping a stopped sampler does nothing.
func (s *Sampler) Stop() {
	done := s.Halt()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(stopGrace):
		logging.Warn("sampler", "loop did not exit within %v", stopGrace)
	}
	s.CloseSession()
	logging.Info("sampler", "Stopped")
}

// Halt signals the loop to stop without waiting. The returned channel
// closes once the loop has exited; it is nil if the sampler was not running.
func (s *Sampler) Halt() <-chan struct{} {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopChan)
	return s.done
}

// CloseSession ends the ledger's open usage session, if any
func (s *Sampler) CloseSession() {
	if s.ledger != nil {
		s.ledger.Close(s.clock.Now())
	}
}

// Running reports whether the loop is active
func (s *Sampler) Running() bool {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()
	return s.running
}

func (s *Sampler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// a stop that raced the tick wins
			select {
			case <-stop:
				return
			default:
			}
			s.Sample()
		}
	}
}

package osenv

import (
	"context"
	"fmt"
	"sync"

	"github.com/vthunder/ambientflow/internal/types"
)

// Call is one recorded side effect
type Call struct {
	Op    string
	Sound types.AmbientSound
	Value float64
}

// Recorder is an in-memory desktop used for dry runs and tests. It serves
// scripted probe values and records every side effect instead of touching
// the real display, audio or notification daemon.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	idleSeconds int
	app         string
	title       string
	idleErr     error
	appErr      error
	effectErr   error
}

// NewRecorder creates a recorder reporting an active user with no window
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SetActivity scripts the values returned by the probe methods
func (r *Recorder) SetActivity(idleSeconds int, app, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idleSeconds = idleSeconds
	r.app = app
	r.title = title
}

// FailQueries makes subsequent probe calls fail (nil clears)
func (r *Recorder) FailQueries(idleErr, appErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idleErr = idleErr
	r.appErr = appErr
}

// FailEffects makes subsequent side-effect calls fail (nil clears)
func (r *Recorder) FailEffects(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effectErr = err
}

func (r *Recorder) IdleSeconds(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idleErr != nil {
		return 0, r.idleErr
	}
	return r.idleSeconds, nil
}

func (r *Recorder) ForegroundApp(ctx context.Context) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appErr != nil {
		return "", "", r.appErr
	}
	return NormalizeApp(r.app), r.title, nil
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.effectErr != nil {
		return fmt.Errorf("%s: %w", c.Op, r.effectErr)
	}
	r.calls = append(r.calls, c)
	return nil
}

func (r *Recorder) ApplyColorTemperature(kelvin int) error {
	return r.record(Call{Op: "apply_color_temperature", Value: float64(kelvin)})
}

func (r *Recorder) ResetDisplay() error {
	return r.record(Call{Op: "reset_display"})
}

func (r *Recorder) Play(sound types.AmbientSound, volume float64) error {
	return r.record(Call{Op: "play", Sound: sound, Value: volume})
}

func (r *Recorder) SetVolume(volume float64) error {
	return r.record(Call{Op: "set_volume", Value: volume})
}

func (r *Recorder) Stop() error {
	return r.record(Call{Op: "stop"})
}

func (r *Recorder) EnableFilter() error {
	return r.record(Call{Op: "enable_filter"})
}

func (r *Recorder) DisableFilter() error {
	return r.record(Call{Op: "disable_filter"})
}

// Calls returns a copy of every recorded side effect in order
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Count returns how many times op was recorded
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

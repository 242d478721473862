// Package environment maps a classified user mode onto the desktop: ambient
// sound, night-mode color temperature and notification filtering.
package environment

import (
	"sync"
	"sync/atomic"

	"github.com/vthunder/ambientflow/internal/config"
	"github.com/vthunder/ambientflow/internal/logging"
	"github.com/vthunder/ambientflow/internal/osenv"
	"github.com/vthunder/ambientflow/internal/types"
)

const (
	researchVolume = 0.7 // fraction of the configured volume
	breakVolume    = 0.5
)

// Settings is the slice of configuration the controller reads
type Settings struct {
	Sound         config.SoundSettings
	Display       config.DisplaySettings
	Notifications config.NotificationSettings
}

// SettingsFrom extracts controller settings from a full config
func SettingsFrom(cfg config.Config) Settings {
	return Settings{
		Sound:         cfg.Sound,
		Display:       cfg.Display,
		Notifications: cfg.Notifications,
	}
}

// Controller owns the EnvironmentState. Every transition runs under one
// mutex so the check-then-act sequence cannot interleave.
type Controller struct {
	display  osenv.Display
	player   osenv.Player
	notifier osenv.Notifier

	autoAdjust atomic.Bool

	mu       sync.Mutex
	settings Settings
	state    types.EnvironmentState
	lastErr  map[string]string // last error per op, to avoid repeating warnings
}

// New creates a controller with auto-adjust on
func New(s Settings, display osenv.Display, player osenv.Player, notifier osenv.Notifier) *Controller {
	c := &Controller{
		display:  display,
		player:   player,
		notifier: notifier,
		settings: s,
		state:    types.DefaultEnvironmentState(),
		lastErr:  make(map[string]string),
	}
	c.autoAdjust.Store(true)
	return c
}

// SetAutoAdjust turns automatic adjustment on or off. Turning it off leaves
// the current environment as it is.
func (c *Controller) SetAutoAdjust(enabled bool) {
	c.autoAdjust.Store(enabled)
	logging.Info("environment", "Auto-adjust %v", enabled)
}

// AutoAdjust reports whether ApplyForMode acts
func (c *Controller) AutoAdjust() bool {
	return c.autoAdjust.Load()
}

// State returns a copy of the current environment
func (c *Controller) State() types.EnvironmentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UpdateConfig swaps settings; they take effect on the next ApplyForMode
func (c *Controller) UpdateConfig(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
}

// ApplyForMode brings the environment in line with result. It returns
// whether the state changed. Nothing happens while auto-adjust is off.
func (c *Controller) ApplyForMode(result types.AnalysisResult) bool {
	if !c.autoAdjust.Load() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.state
	s := c.settings

	switch result.Mode {
	case types.ModeDeepWork:
		if s.Sound.Enabled {
			c.playSound(preferredFocusSound(s.Sound.PreferredSounds), s.Sound.Volume)
		} else {
			c.stopSound()
		}
		if s.Notifications.FilterEnabled {
			c.enableFilter()
		}
		c.state.FocusMode = true

	case types.ModeResearch:
		if s.Sound.Enabled {
			c.playSound(types.SoundCafe, s.Sound.Volume*researchVolume)
		} else {
			c.stopSound()
		}
		c.disableFilter()
		c.state.FocusMode = false

	case types.ModeCreative:
		if s.Sound.Enabled {
			c.playSound(types.SoundForest, s.Sound.Volume)
		} else {
			c.stopSound()
		}
		if s.Notifications.FilterEnabled {
			c.enableFilter()
		}
		c.state.FocusMode = true

	case types.ModeEntertainment:
		c.stopSound()
		c.disableFilter()
		c.state.FocusMode = false

	case types.ModeBreak:
		if s.Sound.Enabled {
			c.playSound(types.SoundForest, s.Sound.Volume*breakVolume)
		} else {
			c.stopSound()
		}
		c.disableFilter()
		c.state.FocusMode = false

	case types.ModeIdle:
		c.stopSound()
	}

	// Night mode is independent of the mode
	late := result.TimeOfDay == types.Evening || result.TimeOfDay == types.Night
	if late && s.Display.NightModeEnabled {
		c.enableNightMode(s.Display.ColorTemperature)
	} else {
		c.disableNightMode()
	}

	return c.state != before
}

// preferredFocusSound picks rain, then cafe, then white noise, depending on
// which appear in the preference list
func preferredFocusSound(preferred []string) types.AmbientSound {
	has := func(name types.AmbientSound) bool {
		for _, p := range preferred {
			if types.AmbientSound(p) == name {
				return true
			}
		}
		return false
	}
	switch {
	case has(types.SoundRain):
		return types.SoundRain
	case has(types.SoundCafe):
		return types.SoundCafe
	default:
		return types.SoundWhiteNoise
	}
}

// Reset stops sound, restores the display, lifts the notification filter
// and returns the state to its defaults. It runs even with auto-adjust off.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.report("stop", c.player.Stop())
	c.report("reset_display", c.display.ResetDisplay())
	c.report("disable_filter", c.notifier.DisableFilter())
	c.state = types.DefaultEnvironmentState()
	logging.Info("environment", "Reset")
}

// PlaySound switches the ambient track by hand, or stops it for SoundNone.
// It works with auto-adjust off; with it on, the next analysis may replace
// the track. It returns the resulting state.
func (c *Controller) PlaySound(kind types.AmbientSound, volume float64) types.EnvironmentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if kind == types.SoundNone {
		c.stopSound()
	} else {
		c.playSound(kind, volume)
	}
	return c.state
}

// The helpers below run with c.mu held. State only changes when the
// backend call succeeds.

func (c *Controller) playSound(kind types.AmbientSound, volume float64) {
	volume = config.ClampVolume(volume)
	if c.state.Sound == kind {
		if c.state.SoundVolume != volume {
			if c.report("set_volume", c.player.SetVolume(volume)) {
				c.state.SoundVolume = volume
			}
		}
		return
	}
	if c.report("play", c.player.Play(kind, volume)) {
		logging.Debug("environment", "Playing %s at %.2f", kind, volume)
		c.state.Sound = kind
		c.state.SoundVolume = volume
	}
}

func (c *Controller) stopSound() {
	if c.state.Sound == types.SoundNone {
		return
	}
	if c.report("stop", c.player.Stop()) {
		c.state.Sound = types.SoundNone
	}
}

func (c *Controller) enableFilter() {
	if c.state.NotificationsFiltered {
		return
	}
	if c.report("enable_filter", c.notifier.EnableFilter()) {
		c.state.NotificationsFiltered = true
	}
}

func (c *Controller) disableFilter() {
	if !c.state.NotificationsFiltered {
		return
	}
	if c.report("disable_filter", c.notifier.DisableFilter()) {
		c.state.NotificationsFiltered = false
	}
}

func (c *Controller) enableNightMode(kelvin int) {
	if c.state.NightModeActive && c.state.ColorTemperature == kelvin {
		return
	}
	if c.report("apply_color_temperature", c.display.ApplyColorTemperature(kelvin)) {
		logging.Debug("environment", "Night mode on (%dK)", kelvin)
		c.state.NightModeActive = true
		c.state.ColorTemperature = kelvin
	}
}

func (c *Controller) disableNightMode() {
	if !c.state.NightModeActive {
		return
	}
	if c.report("reset_display", c.display.ResetDisplay()) {
		logging.Debug("environment", "Night mode off")
		c.state.NightModeActive = false
		c.state.ColorTemperature = types.NeutralTemperature
	}
}

// report logs a backend failure once per distinct error and returns
// whether the call succeeded
func (c *Controller) report(op string, err error) bool {
	if err == nil {
		delete(c.lastErr, op)
		return true
	}
	msg := err.Error()
	if c.lastErr[op] != msg {
		logging.Warn("environment", "%s failed: %v", op, err)
		c.lastErr[op] = msg
	} else {
		logging.Debug("environment", "%s failed again: %v", op, err)
	}
	return false
}

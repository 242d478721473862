package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SoundSettings controls ambient sound playback
type SoundSettings struct {
	Enabled         bool     `yaml:"enabled"`
	Volume          float64  `yaml:"volume"`
	PreferredSounds []string `yaml:"preferred_sounds"`
}

// DisplaySettings controls night mode
type DisplaySettings struct {
	NightModeEnabled bool   `yaml:"night_mode_enabled"`
	ColorTemperature int    `yaml:"color_temperature"` // Kelvin applied in night mode
	Output           string `yaml:"output"`            // xrandr output name, "" = all connected
}

// NotificationSettings controls notification filtering
type NotificationSettings struct {
	FilterEnabled bool `yaml:"filter_enabled"`
}

// BreakSettings controls break-due detection
type BreakSettings struct {
	Enabled             bool `yaml:"enabled"`
	WorkDurationMinutes int  `yaml:"work_duration_minutes"`
}

// TrackingSettings controls the sampler
type TrackingSettings struct {
	IdleThresholdSeconds int    `yaml:"idle_threshold_seconds"`
	SampleIntervalMs     int    `yaml:"sample_interval_ms"`
	AnalysisIntervalMs   int    `yaml:"analysis_interval_ms"`
	Profile              string `yaml:"profile,omitempty"` // off, minimal or detailed
}

// ReminderItem is one periodic reminder (water, stretch, custom...)
type ReminderItem struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Enabled         bool   `yaml:"enabled"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	Message         string `yaml:"message"`
	Icon            string `yaml:"icon"`
}

// ReminderSettings configures the reminder scheduler
type ReminderSettings struct {
	Enabled       bool           `yaml:"enabled"`
	PauseWhenIdle bool           `yaml:"pause_when_idle"`
	Items         []ReminderItem `yaml:"items"`
}

// ProcrastinationSettings configures entertainment-dwell warnings.
// Work hours are "HH:MM"; End before Start means an overnight window.
type ProcrastinationSettings struct {
	Enabled                 bool   `yaml:"enabled" json:"enabled"`
	WorkHoursStart          string `yaml:"work_hours_start" json:"work_hours_start"`
	WorkHoursEnd            string `yaml:"work_hours_end" json:"work_hours_end"`
	WarningThresholdMinutes int    `yaml:"warning_threshold_minutes" json:"warning_threshold_minutes"`
	CooldownMinutes         int    `yaml:"cooldown_minutes" json:"cooldown_minutes"`
}

// PatternSettings overrides the classifier's app/keyword tables. Empty lists
// keep the built-in defaults.
type PatternSettings struct {
	DeepWorkApps         []string `yaml:"deep_work_apps,omitempty"`
	CommunicationApps    []string `yaml:"communication_apps,omitempty"`
	EntertainmentApps    []string `yaml:"entertainment_apps,omitempty"`
	CreativeKeywords     []string `yaml:"creative_keywords,omitempty"`
	BrowserApps          []string `yaml:"browser_apps,omitempty"`
	WorkTitleKeywords    []string `yaml:"work_title_keywords,omitempty"`
	LeisureTitleKeywords []string `yaml:"leisure_title_keywords,omitempty"`
}

// Config holds all ambientflow settings
type Config struct {
	StatePath       string                  `yaml:"state_path"`
	SoundsDir       string                  `yaml:"sounds_dir"`
	AutoAdjust      bool                    `yaml:"auto_adjust"`
	Sound           SoundSettings           `yaml:"sound"`
	Display         DisplaySettings         `yaml:"display"`
	Notifications   NotificationSettings    `yaml:"notifications"`
	Breaks          BreakSettings           `yaml:"breaks"`
	Tracking        TrackingSettings        `yaml:"tracking"`
	Reminders       ReminderSettings        `yaml:"reminders"`
	Procrastination ProcrastinationSettings `yaml:"procrastination"`
	Patterns        PatternSettings         `yaml:"patterns"`

	// Category lists used for daily usage totals
	WorkApps          []string `yaml:"work_apps"`
	EntertainmentApps []string `yaml:"entertainment_apps"`
}

// DefaultProcrastination returns the out-of-the-box warning policy
func DefaultProcrastination() ProcrastinationSettings {
	return ProcrastinationSettings{
		Enabled:                 true,
		WorkHoursStart:          "09:00",
		WorkHoursEnd:            "18:00",
		WarningThresholdMinutes: 15,
		CooldownMinutes:         20,
	}
}

// DefaultReminders returns the built-in water/stretch/eyes reminders
func DefaultReminders() ReminderSettings {
	return ReminderSettings{
		Enabled:       true,
		PauseWhenIdle: true,
		Items: []ReminderItem{
			{ID: "water", Name: "Water", Enabled: true, IntervalMinutes: 30, Message: "Drink a glass of water", Icon: "droplet"},
			{ID: "stretch", Name: "Stretch", Enabled: true, IntervalMinutes: 45, Message: "Stand up and stretch", Icon: "person-arms-up"},
			{ID: "eyes", Name: "Eyes", Enabled: false, IntervalMinutes: 20, Message: "Look into the distance for 20 seconds", Icon: "eye"},
		},
	}
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		StatePath:  defaultStatePath(),
		SoundsDir:  "",
		AutoAdjust: true,
		Sound: SoundSettings{
			Enabled:         true,
			Volume:          0.3,
			PreferredSounds: []string{"rain", "cafe", "forest"},
		},
		Display: DisplaySettings{
			NightModeEnabled: true,
			ColorTemperature: 4500,
		},
		Notifications: NotificationSettings{FilterEnabled: true},
		Breaks: BreakSettings{
			Enabled:             true,
			WorkDurationMinutes: 50,
		},
		Tracking: TrackingSettings{
			IdleThresholdSeconds: 180,
			SampleIntervalMs:     1000,
			AnalysisIntervalMs:   5000,
		},
		Reminders:       DefaultReminders(),
		Procrastination: DefaultProcrastination(),
		WorkApps: []string{
			"code", "devenv", "pycharm", "idea", "webstorm", "goland", "clion", "rider",
			"sublime_text", "vim", "nvim", "emacs", "zed", "terminal", "kitty", "alacritty",
			"wezterm", "gnome-terminal", "konsole", "libreoffice", "soffice", "obsidian",
			"notion", "logseq", "figma", "blender", "gimp", "inkscape", "krita",
			"dbeaver", "postman", "insomnia", "jupyter", "rstudio",
		},
		EntertainmentApps: []string{
			"vlc", "mpv", "spotify", "netflix", "steam", "steamwebhelper", "lutris",
			"heroic", "minecraft", "roblox", "kodi", "plex", "jellyfin", "twitch",
			"discord", "telegram", "whatsapp",
		},
	}
}

func defaultStatePath() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "state"
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "ambientflow")
}

// DefaultPath returns $AMBIENTFLOW_CONFIG or ~/.config/ambientflow/config.yaml
func DefaultPath() (string, error) {
	if p := os.Getenv("AMBIENTFLOW_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config directory: %w", err)
	}
	return filepath.Join(dir, "ambientflow", "config.yaml"), nil
}

// LoadDotEnv loads a .env file from the working directory if one exists.
// Returns false when no file was loaded.
func LoadDotEnv() bool {
	return godotenv.Load() == nil
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and normalizes the result. A missing file yields defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		cfg.Normalize()
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			cfg = Defaults()
			cfg.Normalize()
			return cfg, &ParseError{Path: path, Err: err}
		}
	}

	cfg.applyEnv()
	cfg.Normalize()
	return cfg, nil
}

// Save writes cfg as YAML via a temp file + rename so readers never see a
// partial file.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "config-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Marshal renders cfg as YAML
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AMBIENTFLOW_STATE_PATH"); v != "" {
		c.StatePath = v
	}
	if v := os.Getenv("AMBIENTFLOW_SOUNDS_DIR"); v != "" {
		c.SoundsDir = v
	}
	if v := os.Getenv("AMBIENTFLOW_IDLE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Tracking.IdleThresholdSeconds = n
		}
	}
}

// Normalize clamps out-of-range values and replaces malformed ones with
// defaults. It never fails.
func (c *Config) Normalize() {
	d := Defaults()

	if c.StatePath == "" {
		c.StatePath = d.StatePath
	}
	if c.SoundsDir == "" {
		c.SoundsDir = filepath.Join(c.StatePath, "sounds")
	}
	c.Sound.Volume = ClampVolume(c.Sound.Volume)
	if c.Display.ColorTemperature < 1000 || c.Display.ColorTemperature > 10000 {
		c.Display.ColorTemperature = d.Display.ColorTemperature
	}
	if c.Breaks.WorkDurationMinutes <= 0 {
		c.Breaks.WorkDurationMinutes = d.Breaks.WorkDurationMinutes
	}
	if c.Tracking.IdleThresholdSeconds <= 0 {
		c.Tracking.IdleThresholdSeconds = d.Tracking.IdleThresholdSeconds
	}
	if c.Tracking.SampleIntervalMs <= 0 {
		c.Tracking.SampleIntervalMs = d.Tracking.SampleIntervalMs
	}
	if c.Tracking.AnalysisIntervalMs <= 0 {
		c.Tracking.AnalysisIntervalMs = d.Tracking.AnalysisIntervalMs
	}
	c.Procrastination = NormalizeProcrastination(c.Procrastination)
	for i := range c.Reminders.Items {
		if c.Reminders.Items[i].IntervalMinutes <= 0 {
			c.Reminders.Items[i].IntervalMinutes = 30
		}
	}
}

// NormalizeProcrastination replaces malformed times and non-positive
// durations with defaults.
func NormalizeProcrastination(p ProcrastinationSettings) ProcrastinationSettings {
	d := DefaultProcrastination()
	if _, err := ParseClock(p.WorkHoursStart); err != nil {
		p.WorkHoursStart = d.WorkHoursStart
	}
	if _, err := ParseClock(p.WorkHoursEnd); err != nil {
		p.WorkHoursEnd = d.WorkHoursEnd
	}
	if p.WarningThresholdMinutes <= 0 {
		p.WarningThresholdMinutes = d.WarningThresholdMinutes
	}
	if p.CooldownMinutes < 0 {
		p.CooldownMinutes = d.CooldownMinutes
	}
	return p
}

// ClampVolume forces v into [0,1]
func ClampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ParseClock parses "HH:MM" into minutes after midnight
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

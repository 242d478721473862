package types

import "time"

// ActivityLevel is a coarse bucket of how recently the user touched an input device
type ActivityLevel string

const (
	LevelIdle   ActivityLevel = "idle"
	LevelLow    ActivityLevel = "low"
	LevelNormal ActivityLevel = "normal"
	LevelHigh   ActivityLevel = "high"
)

// LevelFor buckets idle seconds. Anything above the idle threshold is idle,
// above a minute is low, under five seconds is high.
func LevelFor(idleSeconds, idleThreshold int) ActivityLevel {
	switch {
	case idleSeconds > idleThreshold:
		return LevelIdle
	case idleSeconds > 60:
		return LevelLow
	case idleSeconds < 5:
		return LevelHigh
	default:
		return LevelNormal
	}
}

// ActivitySnapshot is what the sampler saw on one tick (no interpretation)
type ActivitySnapshot struct {
	CurrentApp     string        `json:"current_app"`    // lower-cased process name, "" if unknown
	CurrentWindow  string        `json:"current_window"` // window title, "" if unknown
	IsIdle         bool          `json:"is_idle"`
	IdleSeconds    int           `json:"idle_seconds"`
	ActivityLevel  ActivityLevel `json:"activity_level"`
	KeyboardActive bool          `json:"keyboard_active"`
	MouseActive    bool          `json:"mouse_active"`
	Timestamp      time.Time     `json:"timestamp"`
}

// UserMode is the classified behavioral category
type UserMode string

const (
	ModeDeepWork      UserMode = "deep_work"
	ModeResearch      UserMode = "research"
	ModeCreative      UserMode = "creative"
	ModeCommunication UserMode = "communication"
	ModeEntertainment UserMode = "entertainment"
	ModeBreak         UserMode = "break"
	ModeIdle          UserMode = "idle"
)

// IsWork reports whether the mode counts toward work-session timing
func (m UserMode) IsWork() bool {
	return m == ModeDeepWork || m == ModeResearch || m == ModeCreative
}

// IsRest reports whether leaving work for this mode ends a work session
func (m UserMode) IsRest() bool {
	return m == ModeEntertainment || m == ModeBreak || m == ModeIdle
}

// TimeOfDay buckets the wall clock hour
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"   // 6-12
	Afternoon TimeOfDay = "afternoon" // 12-17
	Evening   TimeOfDay = "evening"   // 17-21
	Night     TimeOfDay = "night"     // 21-6
)

// TimeOfDayAt returns the bucket for t's local hour
func TimeOfDayAt(t time.Time) TimeOfDay {
	h := t.Hour()
	switch {
	case h >= 6 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Afternoon
	case h >= 17 && h < 21:
		return Evening
	default:
		return Night
	}
}

// Procrastination is the warning part of an analysis
type Procrastination struct {
	Active               bool   `json:"active"`
	EntertainmentMinutes int    `json:"entertainment_minutes"`
	Message              string `json:"message"`
}

// AnalysisResult is produced once per analysis tick
type AnalysisResult struct {
	Mode               UserMode        `json:"mode"`
	Confidence         float64         `json:"confidence"`
	TimeOfDay          TimeOfDay       `json:"time_of_day"`
	WorkSessionMinutes int             `json:"work_session_minutes"`
	ShouldTakeBreak    bool            `json:"should_take_break"`
	Recommendations    []string        `json:"recommendations"`
	Procrastination    Procrastination `json:"procrastination"`
	Timestamp          time.Time       `json:"timestamp"`
}

// ModeEntry is one point of mode history
type ModeEntry struct {
	Timestamp time.Time `json:"ts"`
	Mode      UserMode  `json:"mode"`
}

// AmbientSound names a background track
type AmbientSound string

const (
	SoundRain       AmbientSound = "rain"
	SoundForest     AmbientSound = "forest"
	SoundCafe       AmbientSound = "cafe"
	SoundOcean      AmbientSound = "ocean"
	SoundFire       AmbientSound = "fire"
	SoundWhiteNoise AmbientSound = "white_noise"
	SoundNone       AmbientSound = "none"
)

// Sounds lists the playable tracks
var Sounds = []AmbientSound{SoundRain, SoundForest, SoundCafe, SoundOcean, SoundFire, SoundWhiteNoise}

// ParseSound accepts a track name or "none"
func ParseSound(name string) (AmbientSound, bool) {
	if AmbientSound(name) == SoundNone {
		return SoundNone, true
	}
	for _, s := range Sounds {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

// NeutralTemperature is the display color temperature with no night shift
const NeutralTemperature = 6500

// EnvironmentState is owned by the environment controller
type EnvironmentState struct {
	Sound                 AmbientSound `json:"sound"`
	SoundVolume           float64      `json:"sound_volume"`
	NightModeActive       bool         `json:"night_mode_active"`
	ColorTemperature      int          `json:"color_temperature"`
	NotificationsFiltered bool         `json:"notifications_filtered"`
	FocusMode             bool         `json:"focus_mode"`
}

// DefaultEnvironmentState is the state with every effect off
func DefaultEnvironmentState() EnvironmentState {
	return EnvironmentState{
		Sound:            SoundNone,
		SoundVolume:      0.3,
		ColorTemperature: NeutralTemperature,
	}
}

package classifier

import (
	"strings"

	"github.com/vthunder/ambientflow/internal/config"
	"github.com/vthunder/ambientflow/internal/types"
)

// Patterns is the category table the detector walks. The tables are data;
// the order in which Detect consults them is the policy.
type Patterns struct {
	DeepWorkApps      []string
	CommunicationApps []string
	EntertainmentApps []string
	CreativeKeywords  []string // matched against app name and window title
	BrowserApps       []string

	// Window-title hints consulted only for browser apps
	WorkTitleKeywords    []string
	LeisureTitleKeywords []string
}

// DefaultPatterns returns the built-in tables
func DefaultPatterns() Patterns {
	return Patterns{
		DeepWorkApps: []string{
			"code", "devenv", "pycharm", "idea", "webstorm", "rider",
			"sublime_text", "notepad++", "vim", "nvim", "emacs",
			"word", "excel", "powerpoint", "photoshop", "illustrator",
			"figma", "sketch", "blender", "unity", "unreal",
		},
		CommunicationApps: []string{
			"teams", "slack", "discord", "zoom", "skype", "telegram",
			"whatsapp", "outlook", "thunderbird", "mail",
		},
		EntertainmentApps: []string{
			"vlc", "spotify", "netflix", "steam", "epicgameslauncher",
			"origin", "battle.net", "twitch", "youtube",
		},
		CreativeKeywords: []string{
			"design", "draw", "paint", "music", "video", "edit",
			"premiere", "aftereffects", "audacity", "fl studio",
		},
		BrowserApps: []string{
			"chrome", "firefox", "edge", "brave", "opera",
			"acrobat", "foxitreader", "kindle", "notion", "obsidian",
			"onenote", "evernote",
		},
		WorkTitleKeywords: []string{
			"github", "stackoverflow", "docs", "documentation",
			"google docs", "sheets", "drive", "jira", "confluence",
		},
		LeisureTitleKeywords: []string{
			"youtube", "netflix", "twitch", "reddit",
			"twitter", "facebook", "instagram",
		},
	}
}

// PatternsFromConfig overlays non-empty configured lists on the defaults
func PatternsFromConfig(s config.PatternSettings) Patterns {
	p := DefaultPatterns()
	override := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = lowerAll(src)
		}
	}
	override(&p.DeepWorkApps, s.DeepWorkApps)
	override(&p.CommunicationApps, s.CommunicationApps)
	override(&p.EntertainmentApps, s.EntertainmentApps)
	override(&p.CreativeKeywords, s.CreativeKeywords)
	override(&p.BrowserApps, s.BrowserApps)
	override(&p.WorkTitleKeywords, s.WorkTitleKeywords)
	override(&p.LeisureTitleKeywords, s.LeisureTitleKeywords)
	return p
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// containsAny reports whether s contains one of the patterns
func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Detect classifies one snapshot. First match wins, in this order: idle,
// deep work, communication, entertainment, creative, browser (by title),
// fallback idle. App names can match several tables, so the order matters.
func Detect(snap types.ActivitySnapshot, p Patterns) (types.UserMode, float64) {
	if snap.IsIdle {
		return types.ModeIdle, 1.0
	}

	app := strings.ToLower(snap.CurrentApp)
	window := strings.ToLower(snap.CurrentWindow)

	if containsAny(app, p.DeepWorkApps) {
		if snap.ActivityLevel == types.LevelHigh {
			return types.ModeDeepWork, 0.9
		}
		return types.ModeDeepWork, 0.7
	}

	if containsAny(app, p.CommunicationApps) {
		return types.ModeCommunication, 0.85
	}

	if containsAny(app, p.EntertainmentApps) {
		return types.ModeEntertainment, 0.9
	}

	for _, kw := range p.CreativeKeywords {
		if kw != "" && (strings.Contains(app, kw) || strings.Contains(window, kw)) {
			return types.ModeCreative, 0.75
		}
	}

	if containsAny(app, p.BrowserApps) {
		switch {
		case containsAny(window, p.WorkTitleKeywords):
			return types.ModeResearch, 0.7
		case containsAny(window, p.LeisureTitleKeywords):
			return types.ModeEntertainment, 0.8
		default:
			// bare browser use counts as research
			return types.ModeResearch, 0.5
		}
	}

	return types.ModeIdle, 0.3
}

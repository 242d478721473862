// Package tui is a live Bubble Tea dashboard for a running orchestrator.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vthunder/ambientflow/internal/orchestrator"
	"github.com/vthunder/ambientflow/internal/types"
)

const refreshInterval = time.Second

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	alertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// Source is the part of the orchestrator the dashboard reads and drives
type Source interface {
	Activity() types.ActivitySnapshot
	Latest() (types.AnalysisResult, bool)
	Environment() types.EnvironmentState
	ProcrastinationMinutes() int
	PendingAlerts() []orchestrator.Alert
	StartBreak() types.EnvironmentState
	AutoAdjust() bool
	SetAutoAdjust(enabled bool)
}

type tickMsg time.Time

// Model is the root Bubble Tea model
type Model struct {
	src    Source
	vp     viewport.Model
	width  int
	height int
	ready  bool
	alerts []orchestrator.Alert // most recent last
	status string
}

// New creates a dashboard over src
func New(src Source) Model {
	return Model{src: src}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "b":
			if !m.src.AutoAdjust() {
				m.status = "auto-adjust is off, break not applied"
			} else {
				env := m.src.StartBreak()
				m.status = fmt.Sprintf("break started: %s at %.0f%%", env.Sound, env.SoundVolume*100)
			}
			m.refresh()
			return m, nil
		case "a":
			on := !m.src.AutoAdjust()
			m.src.SetAutoAdjust(on)
			m.status = "auto-adjust " + onOff(on)
			m.refresh()
			return m, nil
		}
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd

	case tickMsg:
		m.alerts = append(m.alerts, m.src.PendingAlerts()...)
		if len(m.alerts) > 10 {
			m.alerts = m.alerts[len(m.alerts)-10:]
		}
		m.refresh()
		return m, tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// title(1) + status bar(1)
		h := m.height - 2
		if h < 1 {
			h = 1
		}
		if !m.ready {
			m.vp = viewport.New(m.width, h)
			m.ready = true
		} else {
			m.vp.Width = m.width
			m.vp.Height = h
		}
		m.refresh()
		return m, nil
	}
	return m, nil
}

func (m *Model) refresh() {
	if m.ready {
		m.vp.SetContent(m.render())
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}
	title := titleStyle.Width(m.width).Render("ambientflow")

	hint := "  b break  a toggle auto-adjust  ↑/↓ scroll  q quit"
	if m.status != "" {
		hint += "  |  " + m.status
	}
	bar := statusBarStyle.Width(m.width).Render(hint)

	return lipgloss.JoinVertical(lipgloss.Left, title, m.vp.View(), bar)
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func row(sb *strings.Builder, label, value string) {
	sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-16s", label)) + "  " + value + "\n")
}

func (m Model) render() string {
	var sb strings.Builder

	snap := m.src.Activity()
	sb.WriteString(heading("Activity"))
	app := snap.CurrentApp
	if app == "" {
		app = dimStyle.Render("(unknown)")
	}
	row(&sb, "App", app)
	if snap.CurrentWindow != "" {
		row(&sb, "Window", snap.CurrentWindow)
	}
	row(&sb, "Level", fmt.Sprintf("%s (idle %ds)", snap.ActivityLevel, snap.IdleSeconds))

	sb.WriteString(heading("Analysis"))
	if r, ok := m.src.Latest(); ok {
		row(&sb, "Mode", fmt.Sprintf("%s (%.0f%%)", r.Mode, r.Confidence*100))
		row(&sb, "Time of day", string(r.TimeOfDay))
		session := fmt.Sprintf("%d min", r.WorkSessionMinutes)
		if r.ShouldTakeBreak {
			session += "  " + warnStyle.Render("break due")
		}
		row(&sb, "Work session", session)
		if r.Procrastination.Active {
			row(&sb, "Procrastination", warnStyle.Render(r.Procrastination.Message))
		}
		for _, rec := range r.Recommendations {
			sb.WriteString(dimStyle.Render("  • ") + rec + "\n")
		}
	} else {
		sb.WriteString(dimStyle.Render("  waiting for first analysis") + "\n")
	}
	if mins := m.src.ProcrastinationMinutes(); mins > 0 {
		row(&sb, "Entertainment", fmt.Sprintf("%d min during work hours", mins))
	}

	env := m.src.Environment()
	sb.WriteString(heading("Environment"))
	row(&sb, "Auto-adjust", onOff(m.src.AutoAdjust()))
	sound := string(env.Sound)
	if env.Sound != types.SoundNone {
		sound += fmt.Sprintf(" at %.0f%%", env.SoundVolume*100)
	}
	row(&sb, "Sound", sound)
	display := fmt.Sprintf("%dK", env.ColorTemperature)
	if env.NightModeActive {
		display += " (night mode)"
	}
	row(&sb, "Display", display)
	row(&sb, "Notifications", map[bool]string{true: "filtered", false: "normal"}[env.NotificationsFiltered])
	row(&sb, "Focus", onOff(env.FocusMode))

	if len(m.alerts) > 0 {
		sb.WriteString(heading("Alerts"))
		for i := len(m.alerts) - 1; i >= 0; i-- {
			a := m.alerts[i]
			sb.WriteString(fmt.Sprintf("  %s  %s %s\n",
				dimStyle.Render(a.Timestamp.Format("15:04")),
				alertStyle.Render(a.Title),
				a.Message))
		}
	}
	return sb.String()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Run blocks showing the dashboard until the user quits
func Run(src Source) error {
	p := tea.NewProgram(New(src), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Package control exposes the orchestrator to MCP clients over stdio.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vthunder/ambientflow/internal/activity"
	"github.com/vthunder/ambientflow/internal/config"
	"github.com/vthunder/ambientflow/internal/orchestrator"
	"github.com/vthunder/ambientflow/internal/types"
)

// Server serves ambientflow tools
type Server struct {
	orch *orchestrator.Orchestrator
	mcp  *server.MCPServer
}

// New registers every tool against o
func New(o *orchestrator.Orchestrator, version string) *Server {
	s := &Server{
		orch: o,
		mcp: server.NewMCPServer(
			"ambientflow",
			version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(mcp.NewTool("status",
		mcp.WithDescription("Current activity, latest analysis, environment state and procrastination timer."),
	), s.handleStatus)

	s.mcp.AddTool(mcp.NewTool("stats",
		mcp.WithDescription("Today's per-app usage, work/entertainment totals and minutes per mode."),
	), s.handleStats)

	s.mcp.AddTool(mcp.NewTool("start_break",
		mcp.WithDescription("Switch the environment to break mode now (forest sound, notifications on)."),
	), s.handleStartBreak)

	s.mcp.AddTool(mcp.NewTool("set_auto_adjust",
		mcp.WithDescription("Turn automatic environment adjustment on or off."),
		mcp.WithBoolean("enabled",
			mcp.Required(),
			mcp.Description("true to adjust sound, display and notifications automatically"),
		),
	), s.handleSetAutoAdjust)

	s.mcp.AddTool(mcp.NewTool("sound",
		mcp.WithDescription("Without arguments, report the current ambient sound, its volume and the available sounds. With sound, play it now (\"none\" stops playback)."),
		mcp.WithString("sound", mcp.Description("rain, forest, cafe, ocean, fire, white_noise or none")),
		mcp.WithNumber("volume", mcp.Description("0.0 to 1.0. Default: the configured volume")),
	), s.handleSound)

	s.mcp.AddTool(mcp.NewTool("get_procrastination",
		mcp.WithDescription("Procrastination warning settings and the current entertainment dwell in minutes."),
	), s.handleGetProcrastination)

	s.mcp.AddTool(mcp.NewTool("set_procrastination",
		mcp.WithDescription("Update procrastination warning settings. Omitted fields keep their values."),
		mcp.WithBoolean("enabled", mcp.Description("Warn about entertainment during work hours")),
		mcp.WithString("work_hours_start", mcp.Description("Start of work hours, HH:MM")),
		mcp.WithString("work_hours_end", mcp.Description("End of work hours, HH:MM (before start means overnight)")),
		mcp.WithNumber("warning_threshold_minutes", mcp.Description("Minutes of entertainment before the first warning")),
		mcp.WithNumber("cooldown_minutes", mcp.Description("Minimum minutes between warnings")),
	), s.handleSetProcrastination)

	s.mcp.AddTool(mcp.NewTool("pending_alerts",
		mcp.WithDescription("Return and clear queued reminders, break notices and procrastination warnings."),
	), s.handlePendingAlerts)

	s.mcp.AddTool(mcp.NewTool("reminders",
		mcp.WithDescription("List reminders with time until each fires next."),
	), s.handleReminders)

	s.mcp.AddTool(mcp.NewTool("snooze_reminder",
		mcp.WithDescription("Postpone a reminder."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Reminder id, e.g. water")),
		mcp.WithNumber("minutes", mcp.Description("Minutes to snooze. Default: 10")),
	), s.handleSnooze)

	s.mcp.AddTool(mcp.NewTool("dismiss_reminder",
		mcp.WithDescription("Mark a reminder done and restart its interval."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Reminder id")),
	), s.handleDismiss)

	s.mcp.AddTool(mcp.NewTool("add_reminder",
		mcp.WithDescription("Add a custom reminder. It is saved to the config file."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Short name, e.g. Posture")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Text shown when it fires")),
		mcp.WithNumber("interval_minutes", mcp.Description("Minutes between reminders. Default: 30")),
		mcp.WithString("icon", mcp.Description("Icon name. Default: bell")),
	), s.handleAddReminder)

	s.mcp.AddTool(mcp.NewTool("remove_reminder",
		mcp.WithDescription("Remove a custom reminder. Built-in reminders can only be disabled in the config."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Reminder id as returned by add_reminder")),
	), s.handleRemoveReminder)

	s.mcp.AddTool(mcp.NewTool("search_activity",
		mcp.WithDescription("Search the activity journal by text (summary, app, details), newest first."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Case-insensitive text to look for")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries. Default: 20")),
	), s.handleSearchActivity)

	s.mcp.AddTool(mcp.NewTool("activity_today",
		mcp.WithDescription("Today's activity journal (mode changes, warnings, breaks, reminders)."),
		mcp.WithString("type", mcp.Description("Only entries of this type: mode_change, procrastination, break, reminder, environment, error")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries, newest kept. Default: 50")),
	), s.handleActivityToday)

	return s
}

// MCP returns the underlying server
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks serving requests on stdin/stdout
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func arguments(req mcp.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	if args == nil {
		return map[string]any{}
	}
	return args
}

type statusView struct {
	Activity               types.ActivitySnapshot `json:"activity"`
	Analysis               *types.AnalysisResult  `json:"analysis"`
	Environment            types.EnvironmentState `json:"environment"`
	AutoAdjust             bool                   `json:"auto_adjust"`
	ProcrastinationMinutes int                    `json:"procrastination_minutes"`
	RecentModes            []types.ModeEntry      `json:"recent_modes"`
}

func (s *Server) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v := statusView{
		Activity:               s.orch.Activity(),
		Environment:            s.orch.Environment(),
		AutoAdjust:             s.orch.AutoAdjust(),
		ProcrastinationMinutes: s.orch.ProcrastinationMinutes(),
	}
	if latest, ok := s.orch.Latest(); ok {
		v.Analysis = &latest
	}
	history := s.orch.History()
	if len(history) > 10 {
		history = history[len(history)-10:]
	}
	v.RecentModes = history
	return jsonResult(v)
}

func (s *Server) handleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.orch.Stats(s.orch.Now()))
}

func (s *Server) handleStartBreak(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.orch.AutoAdjust() {
		return mcp.NewToolResultError("auto-adjust is off; enable it to let ambientflow change the environment"), nil
	}
	return jsonResult(s.orch.StartBreak())
}

func (s *Server) handleSetAutoAdjust(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	enabled, ok := arguments(req)["enabled"].(bool)
	if !ok {
		return mcp.NewToolResultError("enabled (boolean) is required"), nil
	}
	s.orch.SetAutoAdjust(enabled)
	return jsonResult(map[string]bool{"auto_adjust": enabled})
}

type soundView struct {
	Current   types.AmbientSound   `json:"current"`
	Volume    float64              `json:"volume"`
	Available []types.AmbientSound `json:"available"`
}

func (s *Server) handleSound(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	name, _ := args["sound"].(string)
	if name == "" {
		env := s.orch.Environment()
		return jsonResult(soundView{Current: env.Sound, Volume: env.SoundVolume, Available: types.Sounds})
	}

	kind, ok := types.ParseSound(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown sound %q", name)), nil
	}
	volume := -1.0
	if v, ok := args["volume"].(float64); ok {
		if v < 0 || v > 1 {
			return mcp.NewToolResultError("volume must be between 0 and 1"), nil
		}
		volume = v
	}
	env := s.orch.PlaySound(kind, volume)
	if env.Sound != kind {
		return mcp.NewToolResultError(fmt.Sprintf("could not play %s; see the log for the player error", kind)), nil
	}
	return jsonResult(soundView{Current: env.Sound, Volume: env.SoundVolume, Available: types.Sounds})
}

type procrastinationView struct {
	Settings config.ProcrastinationSettings `json:"settings"`
	Minutes  int                            `json:"entertainment_minutes"`
}

func (s *Server) handleGetProcrastination(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(procrastinationView{
		Settings: s.orch.Procrastination(),
		Minutes:  s.orch.ProcrastinationMinutes(),
	})
}

func (s *Server) handleSetProcrastination(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	p := s.orch.Procrastination()

	if v, ok := args["enabled"].(bool); ok {
		p.Enabled = v
	}
	for key, dst := range map[string]*string{"work_hours_start": &p.WorkHoursStart, "work_hours_end": &p.WorkHoursEnd} {
		v, ok := args[key].(string)
		if !ok {
			continue
		}
		if _, err := config.ParseClock(v); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %v", key, err)), nil
		}
		*dst = v
	}
	for key, dst := range map[string]*int{"warning_threshold_minutes": &p.WarningThresholdMinutes, "cooldown_minutes": &p.CooldownMinutes} {
		v, ok := args[key].(float64)
		if !ok {
			continue
		}
		if v < 0 {
			return mcp.NewToolResultError(key + " must not be negative"), nil
		}
		*dst = int(v)
	}

	return jsonResult(s.orch.SetProcrastination(p))
}

func (s *Server) handlePendingAlerts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alerts := s.orch.PendingAlerts()
	if alerts == nil {
		alerts = []orchestrator.Alert{}
	}
	return jsonResult(alerts)
}

func (s *Server) handleReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.orch.Reminders().Status())
}

func (s *Server) handleSnooze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	id, _ := args["id"].(string)
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	minutes := 0
	if v, ok := args["minutes"].(float64); ok {
		minutes = int(v)
	}
	if !s.orch.Reminders().Snooze(id, minutes) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown reminder %q", id)), nil
	}
	return mcp.NewToolResultText("snoozed " + id), nil
}

func (s *Server) handleDismiss(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := arguments(req)["id"].(string)
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	if !s.orch.Reminders().Dismiss(id) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown reminder %q", id)), nil
	}
	return mcp.NewToolResultText("dismissed " + id), nil
}

func (s *Server) handleAddReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	name, _ := args["name"].(string)
	message, _ := args["message"].(string)
	if strings.TrimSpace(name) == "" || strings.TrimSpace(message) == "" {
		return mcp.NewToolResultError("name and message are required"), nil
	}
	interval := 0
	if v, ok := args["interval_minutes"].(float64); ok {
		if v < 1 {
			return mcp.NewToolResultError("interval_minutes must be at least 1"), nil
		}
		interval = int(v)
	}
	icon, _ := args["icon"].(string)
	return jsonResult(s.orch.AddReminder(name, interval, message, icon))
}

func (s *Server) handleRemoveReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := arguments(req)["id"].(string)
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	if !s.orch.RemoveReminder(id) {
		return mcp.NewToolResultError(fmt.Sprintf("no custom reminder %q", id)), nil
	}
	return mcp.NewToolResultText("removed " + id), nil
}

func (s *Server) handleSearchActivity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	journal := s.orch.Journal()
	if journal == nil {
		return mcp.NewToolResultError("activity journal is not enabled"), nil
	}
	args := arguments(req)
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	limit := 20
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}
	entries, err := journal.Search(query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to search journal: %v", err)), nil
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	return jsonResult(entries)
}

func (s *Server) handleActivityToday(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	journal := s.orch.Journal()
	if journal == nil {
		return mcp.NewToolResultError("activity journal is not enabled"), nil
	}

	args := arguments(req)
	limit := 50
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}
	filter, _ := args["type"].(string)
	filter = strings.TrimSpace(filter)

	entries, err := journal.Today()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read journal: %v", err)), nil
	}

	out := make([]activity.Entry, 0, len(entries))
	for _, e := range entries {
		if filter == "" || string(e.Type) == filter {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return jsonResult(out)
}

package orchestrator

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vthunder/ambientflow/internal/activity"
	"github.com/vthunder/ambientflow/internal/clock"
	"github.com/vthunder/ambientflow/internal/config"
	"github.com/vthunder/ambientflow/internal/osenv"
	"github.com/vthunder/ambientflow/internal/profiling"
	"github.com/vthunder/ambientflow/internal/types"
)

type fixture struct {
	o       *Orchestrator
	rec     *osenv.Recorder
	clock   *clock.Fake
	journal *activity.Log
}

func newFixture(t *testing.T, hour int) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.StatePath = dir

	rec := osenv.NewRecorder()
	fc := clock.NewFake(time.Date(2026, 5, 4, hour, 0, 0, 0, time.Local))
	journal := activity.New(dir)

	o, err := New(cfg, Deps{
		Probe:    rec,
		Display:  rec,
		Player:   rec,
		Notifier: rec,
		Clock:    fc,
		Journal:  journal,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{o: o, rec: rec, clock: fc, journal: journal}
}

// step samples the scripted activity and runs one analysis
func (f *fixture) step(app, title string) types.AnalysisResult {
	f.rec.SetActivity(0, app, title)
	f.o.sampler.Sample()
	return f.o.Tick()
}

func TestNewRequiresBackends(t *testing.T) {
	if _, err := New(config.Defaults(), Deps{}); err == nil {
		t.Error("expected error for missing backends")
	}
}

func TestTickAppliesEnvironment(t *testing.T) {
	f := newFixture(t, 14)

	if _, ok := f.o.Latest(); ok {
		t.Fatal("latest result before first tick")
	}

	r := f.step("code", "main.go")
	if r.Mode != types.ModeDeepWork {
		t.Fatalf("got mode %s, want deep_work", r.Mode)
	}
	latest, ok := f.o.Latest()
	if !ok || latest.Mode != types.ModeDeepWork {
		t.Errorf("latest: got %+v ok=%v", latest, ok)
	}

	env := f.o.Environment()
	if env.Sound != types.SoundRain || !env.FocusMode || !env.NotificationsFiltered {
		t.Errorf("environment: got %+v", env)
	}
	if f.o.Activity().CurrentApp != "code" {
		t.Errorf("activity: got %q", f.o.Activity().CurrentApp)
	}

	changes, err := f.journal.ByType(activity.TypeModeChange, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 || changes[0].Mode != types.ModeDeepWork {
		t.Errorf("mode changes: got %+v", changes)
	}

	// same mode again journals nothing new
	f.step("code", "main.go")
	changes, _ = f.journal.ByType(activity.TypeModeChange, 10)
	if len(changes) != 1 {
		t.Errorf("got %d mode changes, want 1", len(changes))
	}
}

func TestProcrastinationAlert(t *testing.T) {
	f := newFixture(t, 10)

	var got []int
	f.o.OnWarning(func(_ string, minutes int) { got = append(got, minutes) })
	f.o.OnWarning(func(string, int) { panic("boom") })

	f.step("vlc", "")
	f.clock.Advance(15 * time.Minute)
	r := f.step("vlc", "")
	if !r.Procrastination.Active {
		t.Fatalf("expected active warning, got %+v", r.Procrastination)
	}
	if len(got) != 1 || got[0] != 15 {
		t.Errorf("callback minutes: got %v, want [15]", got)
	}
	if f.o.ProcrastinationMinutes() != 15 {
		t.Errorf("dwell: got %d, want 15", f.o.ProcrastinationMinutes())
	}

	alerts := f.o.PendingAlerts()
	if len(alerts) != 1 || alerts[0].Kind != AlertProcrastination || alerts[0].Minutes != 15 {
		t.Errorf("alerts: got %+v", alerts)
	}
	if len(f.o.PendingAlerts()) != 0 {
		t.Error("queue not drained")
	}

	entries, _ := f.journal.ByType(activity.TypeProcrastination, 10)
	if len(entries) != 1 || entries[0].App != "vlc" {
		t.Errorf("journal: got %+v", entries)
	}
}

func TestBreakAlertOncePerSession(t *testing.T) {
	f := newFixture(t, 10)

	f.step("code", "")
	f.clock.Advance(50 * time.Minute)
	if r := f.step("code", ""); !r.ShouldTakeBreak {
		t.Fatal("expected break due after 50 minutes")
	}
	f.clock.Advance(time.Minute)
	f.step("code", "")

	var breaks int
	for _, a := range f.o.PendingAlerts() {
		if a.Kind == AlertBreak {
			breaks++
		}
	}
	if breaks != 1 {
		t.Errorf("got %d break alerts, want 1", breaks)
	}
}

func TestPendingAlertsCapped(t *testing.T) {
	f := newFixture(t, 10)
	for i := 1; i <= 7; i++ {
		f.o.pushAlert(Alert{Kind: AlertReminder, Minutes: i})
	}

	alerts := f.o.PendingAlerts()
	if len(alerts) != maxPendingAlerts {
		t.Fatalf("got %d alerts, want %d", len(alerts), maxPendingAlerts)
	}
	if alerts[0].Minutes != 3 || alerts[4].Minutes != 7 {
		t.Errorf("got oldest %d newest %d, want 3 and 7", alerts[0].Minutes, alerts[4].Minutes)
	}
}

func TestReminderAlert(t *testing.T) {
	f := newFixture(t, 10)
	f.clock.Advance(30 * time.Minute)
	f.rec.SetActivity(0, "code", "")
	f.o.sampler.Sample()
	f.o.Reminders().Check()

	alerts := f.o.PendingAlerts()
	if len(alerts) != 1 || alerts[0].Kind != AlertReminder || alerts[0].ID != "water" {
		t.Errorf("alerts: got %+v", alerts)
	}
}

func TestStartBreak(t *testing.T) {
	f := newFixture(t, 14)
	f.step("code", "")

	env := f.o.StartBreak()
	if env.Sound != types.SoundForest || math.Abs(env.SoundVolume-0.15) > 1e-9 {
		t.Errorf("got %s@%v, want forest@0.15", env.Sound, env.SoundVolume)
	}
	if env.FocusMode || env.NotificationsFiltered {
		t.Errorf("break should clear focus and filter: %+v", env)
	}
	entries, _ := f.journal.ByType(activity.TypeBreak, 10)
	if len(entries) != 1 {
		t.Errorf("got %d break entries, want 1", len(entries))
	}
}

func TestAutoAdjustOffFreezesEnvironment(t *testing.T) {
	f := newFixture(t, 14)
	f.o.SetAutoAdjust(false)

	f.step("code", "")
	if f.o.Environment() != types.DefaultEnvironmentState() {
		t.Errorf("environment changed: %+v", f.o.Environment())
	}
	if f.o.AutoAdjust() || f.o.Config().AutoAdjust {
		t.Error("auto-adjust still reported on")
	}
}

func TestSetProcrastinationNormalizes(t *testing.T) {
	f := newFixture(t, 10)
	got := f.o.SetProcrastination(config.ProcrastinationSettings{
		Enabled:                 true,
		WorkHoursStart:          "bogus",
		WorkHoursEnd:            "17:00",
		WarningThresholdMinutes: 0,
		CooldownMinutes:         5,
	})
	if got.WorkHoursStart != "09:00" || got.WorkHoursEnd != "17:00" || got.WarningThresholdMinutes != 15 {
		t.Errorf("got %+v", got)
	}
	if f.o.Procrastination() != got {
		t.Errorf("stored %+v, returned %+v", f.o.Procrastination(), got)
	}
}

func TestApplyConfig(t *testing.T) {
	f := newFixture(t, 14)

	cfg := config.Defaults()
	cfg.StatePath = t.TempDir()
	cfg.AutoAdjust = false
	cfg.Procrastination.WarningThresholdMinutes = 5
	cfg.Reminders.Items = cfg.Reminders.Items[:1]
	f.o.ApplyConfig(cfg)

	if f.o.AutoAdjust() {
		t.Error("auto-adjust not applied")
	}
	if got := f.o.Procrastination().WarningThresholdMinutes; got != 5 {
		t.Errorf("threshold: got %d, want 5", got)
	}
	if got := len(f.o.Reminders().Status().Reminders); got != 1 {
		t.Errorf("reminders: got %d, want 1", got)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, 10)

	f.step("code", "")
	f.clock.Advance(30 * time.Minute)
	f.step("vlc", "")
	f.clock.Advance(10 * time.Minute)

	s := f.o.Stats(f.clock.Now())
	if s.Date != "2026-05-04" {
		t.Errorf("date: got %s", s.Date)
	}
	if s.WorkSeconds != 1800 || s.EntertainmentSeconds != 600 {
		t.Errorf("got work=%d entertainment=%d, want 1800 600", s.WorkSeconds, s.EntertainmentSeconds)
	}
	if len(s.Apps) != 2 || s.Apps[0].App != "code" {
		t.Errorf("apps: got %+v", s.Apps)
	}
	if s.ModeMinutes[types.ModeDeepWork] != 30 || s.ModeMinutes[types.ModeEntertainment] != 10 {
		t.Errorf("mode minutes: got %v", s.ModeMinutes)
	}
	if s.CurrentMode != types.ModeEntertainment {
		t.Errorf("current mode: got %s", s.CurrentMode)
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, 22)
	f.step("code", "")
	if !f.o.Environment().NightModeActive {
		t.Fatal("night mode should be on at 22:00")
	}

	f.o.Stop() // not running: no-op
	f.o.Start()
	f.o.Start()
	if !f.o.Running() {
		t.Fatal("not running after Start")
	}

	start := time.Now()
	f.o.Stop()
	f.o.Stop()
	if time.Since(start) > 3*stopGrace {
		t.Errorf("Stop took %v", time.Since(start))
	}
	if f.o.Running() {
		t.Error("still running after Stop")
	}
	if f.o.Environment() != types.DefaultEnvironmentState() {
		t.Errorf("environment not reset: %+v", f.o.Environment())
	}
}

func TestTickProfiling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.jsonl")
	prof, err := profiling.Open(path, profiling.LevelDetailed)
	if err != nil {
		t.Fatal(err)
	}

	rec := osenv.NewRecorder()
	o, err := New(config.Defaults(), Deps{
		Probe:    rec,
		Display:  rec,
		Player:   rec,
		Notifier: rec,
		Clock:    clock.NewFake(time.Date(2026, 5, 4, 14, 0, 0, 0, time.Local)),
		Profiler: prof,
	})
	if err != nil {
		t.Fatal(err)
	}
	rec.SetActivity(0, "code", "")
	o.sampler.Sample()
	o.Tick()
	o.Tick()
	prof.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// tick, classify and environment per analysis
	if len(lines) != 6 {
		t.Fatalf("got %d timings, want 6:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[2], `"stage":"tick"`) || !strings.Contains(lines[2], `"mode":"deep_work"`) {
		t.Errorf("first tick timing: %s", lines[2])
	}
	if !strings.Contains(lines[5], `"tick":2`) {
		t.Errorf("second tick numbering: %s", lines[5])
	}
}

func TestAwaitLoopsSharesOneDeadline(t *testing.T) {
	exited := make(chan struct{})
	close(exited)
	loops := []stoppingLoop{
		{"analysis", make(chan struct{})},
		{"reminders", exited},
		{"sampler", make(chan struct{})},
		{"idle", nil},
	}

	grace := 100 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	start := time.Now()
	stuck := awaitLoops(ctx, loops)
	if elapsed := time.Since(start); elapsed > 2*grace {
		t.Errorf("waited %v for two stuck loops, want about %v", elapsed, grace)
	}
	if strings.Join(stuck, ",") != "analysis,sampler" {
		t.Errorf("got stuck loops %v, want [analysis sampler]", stuck)
	}
}

func TestRuntimeChangesSaved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := config.Defaults()
	cfg.StatePath = dir
	rec := osenv.NewRecorder()
	o, err := New(cfg, Deps{Probe: rec, Display: rec, Player: rec, Notifier: rec, ConfigPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	p := o.Procrastination()
	p.WarningThresholdMinutes = 7
	o.SetProcrastination(p)
	it := o.AddReminder("Posture", 25, "Sit up", "")

	saved, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if saved.Procrastination.WarningThresholdMinutes != 7 {
		t.Errorf("threshold: got %d, want 7", saved.Procrastination.WarningThresholdMinutes)
	}
	if n := len(saved.Reminders.Items); n != 4 || saved.Reminders.Items[3].ID != it.ID {
		t.Errorf("saved reminders: %+v", saved.Reminders.Items)
	}
}

func TestPlaySoundJournaled(t *testing.T) {
	f := newFixture(t, 11)
	f.o.SetAutoAdjust(false)

	st := f.o.PlaySound(types.SoundCafe, -1)
	if st.Sound != types.SoundCafe || st.SoundVolume != config.Defaults().Sound.Volume {
		t.Errorf("got %+v", st)
	}
	entries, _ := f.journal.ByType(activity.TypeEnvironment, 10)
	if len(entries) != 1 {
		t.Errorf("got %d environment entries, want 1", len(entries))
	}
}

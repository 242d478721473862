package reminders

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vthunder/ambientflow/internal/clock"
	"github.com/vthunder/ambientflow/internal/config"
)

func newTestManager(t *testing.T, idle *atomic.Bool) (*Manager, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	var isIdle func() bool
	if idle != nil {
		isIdle = idle.Load
	}
	return New(config.DefaultReminders(), isIdle, fc), fc
}

func ids(items []config.ReminderItem) string {
	var out []string
	for _, it := range items {
		out = append(out, it.ID)
	}
	return strings.Join(out, ",")
}

func TestFirstTriggerAfterFullInterval(t *testing.T) {
	m, fc := newTestManager(t, nil)

	fc.Advance(29 * time.Minute)
	if fired := m.Check(); len(fired) != 0 {
		t.Fatalf("fired early: %s", ids(fired))
	}

	fc.Advance(time.Minute)
	if got := ids(m.Check()); got != "water" {
		t.Errorf("at 30m: got %q, want water", got)
	}

	fc.Advance(15 * time.Minute)
	if got := ids(m.Check()); got != "stretch" {
		t.Errorf("at 45m: got %q, want stretch", got)
	}

	fc.Advance(15 * time.Minute)
	if got := ids(m.Check()); got != "water" {
		t.Errorf("at 60m: got %q, want water", got)
	}
}

func TestDisabledItemNeverFires(t *testing.T) {
	m, fc := newTestManager(t, nil)
	for i := 0; i < 12; i++ {
		fc.Advance(10 * time.Minute)
		for _, it := range m.Check() {
			if it.ID == "eyes" {
				t.Fatal("disabled reminder fired")
			}
		}
	}
}

func TestPauseWhenIdle(t *testing.T) {
	var idle atomic.Bool
	idle.Store(true)
	m, fc := newTestManager(t, &idle)

	fc.Advance(time.Hour)
	if fired := m.Check(); len(fired) != 0 {
		t.Errorf("fired while idle: %s", ids(fired))
	}

	idle.Store(false)
	if fired := m.Check(); len(fired) != 2 {
		t.Errorf("got %q, want water and stretch", ids(fired))
	}
}

func TestGloballyDisabled(t *testing.T) {
	s := config.DefaultReminders()
	s.Enabled = false
	fc := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	m := New(s, nil, fc)

	fc.Advance(2 * time.Hour)
	if fired := m.Check(); len(fired) != 0 {
		t.Errorf("fired while disabled: %s", ids(fired))
	}
}

func TestSnooze(t *testing.T) {
	m, fc := newTestManager(t, nil)
	fc.Advance(55 * time.Minute)
	m.Check() // water at 9:30 is long past; fires now at 9:55

	fc.Advance(30 * time.Minute) // 10:25, water due again
	if !m.Snooze("water", 0) {
		t.Fatal("snooze of known reminder failed")
	}
	for _, it := range m.Check() {
		if it.ID == "water" {
			t.Fatal("fired while snoozed")
		}
	}
	st := find(t, m.Status(), "water")
	if !st.Snoozed || st.NextInSeconds == nil || *st.NextInSeconds != DefaultSnooze*60 {
		t.Errorf("got snoozed=%v next=%v, want true 600", st.Snoozed, st.NextInSeconds)
	}

	fc.Advance(DefaultSnooze * time.Minute)
	found := false
	for _, it := range m.Check() {
		found = found || it.ID == "water"
	}
	if !found {
		t.Error("water did not fire when the snooze ended")
	}

	if m.Snooze("nope", 5) {
		t.Error("snooze of unknown reminder succeeded")
	}
}

func TestDismissRestartsInterval(t *testing.T) {
	m, fc := newTestManager(t, nil)
	fc.Advance(25 * time.Minute)
	if !m.Dismiss("water") {
		t.Fatal("dismiss failed")
	}

	fc.Advance(10 * time.Minute)
	for _, it := range m.Check() {
		if it.ID == "water" {
			t.Fatal("water fired 10 minutes after dismiss")
		}
	}
	fc.Advance(20 * time.Minute)
	found := false
	for _, it := range m.Check() {
		found = found || it.ID == "water"
	}
	if !found {
		t.Error("water did not fire 30 minutes after dismiss")
	}
}

func find(t *testing.T, o Overview, id string) Status {
	t.Helper()
	for _, s := range o.Reminders {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("reminder %q not in status", id)
	return Status{}
}

func TestStatus(t *testing.T) {
	m, fc := newTestManager(t, nil)
	fc.Advance(10 * time.Minute)

	o := m.Status()
	if !o.Enabled || len(o.Reminders) != 3 {
		t.Fatalf("got enabled=%v with %d reminders", o.Enabled, len(o.Reminders))
	}
	water := find(t, o, "water")
	if water.NextInSeconds == nil || *water.NextInSeconds != 20*60 {
		t.Errorf("water next: got %v, want 1200", water.NextInSeconds)
	}
	if eyes := find(t, o, "eyes"); eyes.NextInSeconds != nil {
		t.Errorf("disabled reminder has next=%d", *eyes.NextInSeconds)
	}

	fc.Advance(20 * time.Minute)
	m.Check()
	if got := find(t, m.Status(), "water").TriggerCount; got != 1 {
		t.Errorf("trigger count: got %d, want 1", got)
	}
}

func TestCustomReminders(t *testing.T) {
	m, fc := newTestManager(t, nil)

	it := m.AddCustom("Posture", 15, "Sit up straight", "")
	if !strings.HasPrefix(it.ID, customPrefix) || it.Icon != "bell" || !it.Enabled {
		t.Errorf("got %+v", it)
	}

	fc.Advance(15 * time.Minute)
	if got := ids(m.Check()); got != it.ID {
		t.Errorf("got %q, want %q", got, it.ID)
	}

	if m.RemoveCustom("water") {
		t.Error("built-in reminder removed")
	}
	if !m.RemoveCustom(it.ID) {
		t.Fatal("custom reminder not removed")
	}
	if m.RemoveCustom(it.ID) {
		t.Error("second removal succeeded")
	}
	if len(m.Status().Reminders) != 3 {
		t.Errorf("got %d reminders after removal, want 3", len(m.Status().Reminders))
	}
}

func TestUpdateSettingsKeepsTimers(t *testing.T) {
	m, fc := newTestManager(t, nil)
	fc.Advance(20 * time.Minute)

	s := m.Settings()
	s.Items = s.Items[:1] // water only
	m.UpdateSettings(s)

	fc.Advance(10 * time.Minute)
	if got := ids(m.Check()); got != "water" {
		t.Errorf("got %q, want water on its original schedule", got)
	}
	if len(m.Status().Reminders) != 1 {
		t.Errorf("got %d reminders, want 1", len(m.Status().Reminders))
	}
}

func TestListenerPanicRecovered(t *testing.T) {
	m, fc := newTestManager(t, nil)
	var calls int
	m.AddListener(func(config.ReminderItem) { panic("boom") })
	m.AddListener(func(config.ReminderItem) { calls++ })

	fc.Advance(30 * time.Minute)
	m.Check()
	if calls != 1 {
		t.Errorf("second listener: got %d calls, want 1", calls)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.Stop()
	m.Start()
	m.Start()
	m.Stop()
	m.Stop()
}

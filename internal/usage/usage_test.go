package usage

import (
	"sync"
	"testing"
	"time"
)

var base = time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)

func at(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

func TestLedgerSessions(t *testing.T) {
	l := NewLedger()
	var closed []Session
	l.SetSink(func(s Session) { closed = append(closed, s) })

	l.Switch("code", at(0))
	l.Switch("code", at(5)) // same app: no new session
	l.Switch("firefox", at(30))
	l.Switch("code", at(40))
	l.Close(at(50))

	if len(closed) != 3 {
		t.Fatalf("got %d closed sessions, want 3", len(closed))
	}
	if closed[0].App != "code" || closed[0].Seconds != 1800 {
		t.Errorf("first session: %+v", closed[0])
	}
	if closed[1].App != "firefox" || closed[1].Seconds != 600 {
		t.Errorf("second session: %+v", closed[1])
	}
	if closed[0].ID == "" || closed[0].ID == closed[1].ID {
		t.Error("sessions need distinct ids")
	}

	u, ok := l.Usage("code")
	if !ok || u.TotalSeconds != 2400 || len(u.Sessions) != 2 {
		t.Errorf("code usage: %+v", u)
	}
	if l.Current() != "" {
		t.Errorf("current after Close: %q", l.Current())
	}
}

func TestLedgerEmptyAppClosesSession(t *testing.T) {
	l := NewLedger()
	l.Switch("code", at(0))
	l.Switch("", at(10))
	if l.Current() != "" {
		t.Errorf("current: %q", l.Current())
	}
	u, _ := l.Usage("code")
	if u.TotalSeconds != 600 {
		t.Errorf("total: %d", u.TotalSeconds)
	}
	// closing with nothing open is a no-op
	l.Close(at(20))
	if u, _ := l.Usage("code"); u.TotalSeconds != 600 {
		t.Errorf("total after empty close: %d", u.TotalSeconds)
	}
}

func TestTodayStatsIncludesOpenSession(t *testing.T) {
	l := NewLedger()
	l.Switch("vlc", at(0))
	l.Switch("code", at(10))

	stats := l.TodayStats(at(40))
	if len(stats) != 2 {
		t.Fatalf("got %+v", stats)
	}
	if stats[0].App != "code" || stats[0].Seconds != 1800 {
		t.Errorf("open session not counted: %+v", stats[0])
	}
	if stats[1].App != "vlc" || stats[1].Seconds != 600 {
		t.Errorf("vlc: %+v", stats[1])
	}
}

func TestDayRolloverDropsOldSessions(t *testing.T) {
	l := NewLedger()
	l.Switch("code", at(0))
	l.Switch("vlc", at(60))

	tomorrow := base.AddDate(0, 0, 1)
	l.Switch("code", tomorrow)
	l.Switch("firefox", tomorrow.Add(20*time.Minute))

	stats := l.TodayStats(tomorrow.Add(30 * time.Minute))
	byApp := map[string]int{}
	for _, s := range stats {
		byApp[s.App] = s.Seconds
	}
	if byApp["code"] != 1200 || byApp["firefox"] != 600 {
		t.Errorf("got %v", byApp)
	}
	if _, ok := byApp["vlc"]; ok {
		// vlc's session started yesterday
		t.Errorf("yesterday's vlc session counted: %v", byApp)
	}

	u, _ := l.Usage("code")
	if u.TotalSeconds != 3600+1200 {
		t.Errorf("lifetime total: %d", u.TotalSeconds)
	}
}

func TestCategorySeconds(t *testing.T) {
	totals := []AppTotal{
		{App: "code", Seconds: 100},
		{App: "gnome-terminal", Seconds: 50},
		{App: "VLC", Seconds: 30},
		{App: "firefox", Seconds: 20},
	}
	tests := []struct {
		name     string
		patterns []string
		want     int
	}{
		{"exact", []string{"code"}, 100},
		{"substring", []string{"terminal"}, 50},
		{"case-insensitive", []string{"vlc"}, 30},
		{"counted once", []string{"code", "cod"}, 100},
		{"empty pattern ignored", []string{""}, 0},
		{"none", nil, 0},
		{"several", []string{"code", "terminal", "firefox"}, 170},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorySeconds(totals, tt.patterns); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLedgerConcurrent(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			app := []string{"code", "vlc", "firefox"}[i%3]
			l.Switch(app, at(i))
			l.TodayStats(at(i))
		}(i)
	}
	wg.Wait()
}

func TestStore(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	sessions := []Session{
		{ID: "1", App: "code", Start: at(0), End: at(30), Seconds: 1800},
		{ID: "2", App: "vlc", Start: at(30), End: at(40), Seconds: 600},
		{ID: "3", App: "code", Start: at(40), End: at(50), Seconds: 600},
		{ID: "4", App: "code", Start: at(0).AddDate(0, 0, 1), End: at(10).AddDate(0, 0, 1), Seconds: 600},
	}
	for _, sess := range sessions {
		if err := s.Record(sess); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	// recording the same id again replaces it
	if err := s.Record(sessions[0]); err != nil {
		t.Fatal(err)
	}

	totals, err := s.DailyTotals("2026-05-04")
	if err != nil {
		t.Fatal(err)
	}
	if len(totals) != 2 || totals[0] != (AppTotal{App: "code", Seconds: 2400}) || totals[1] != (AppTotal{App: "vlc", Seconds: 600}) {
		t.Errorf("totals: %+v", totals)
	}

	list, err := s.Sessions("2026-05-04")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].ID != "1" || list[2].ID != "3" {
		t.Fatalf("sessions: %+v", list)
	}
	if !list[1].Start.Equal(at(30)) {
		t.Errorf("start time: got %v, want %v", list[1].Start, at(30))
	}

	empty, err := s.DailyTotals("2000-01-01")
	if err != nil || len(empty) != 0 {
		t.Errorf("empty day: %v %v", empty, err)
	}
}

func TestStoreCorruptTimestamp(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_, err = s.db.Exec(
		`INSERT INTO usage_sessions (id, app, day, started_at, ended_at, seconds) VALUES ('bad', 'code', '2026-05-04', 'yesterday', 'today', 60)`,
	)
	if err != nil {
		t.Fatal(err)
	}
	if list, err := s.Sessions("2026-05-04"); err == nil {
		t.Errorf("corrupt row read without error: %+v", list)
	}
}

func TestLedgerSinkToStore(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	l := NewLedger()
	l.SetSink(func(sess Session) {
		if err := s.Record(sess); err != nil {
			t.Errorf("record: %v", err)
		}
	})
	l.Switch("code", at(0))
	l.Switch("vlc", at(20))
	l.Close(at(25))

	totals, _ := s.DailyTotals("2026-05-04")
	if len(totals) != 2 || totals[0].Seconds != 1200 || totals[1].Seconds != 300 {
		t.Errorf("got %+v", totals)
	}
}

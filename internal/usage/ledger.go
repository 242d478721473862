// Package usage keeps the per-application usage ledger: one session per
// contiguous stretch of foreground time, cumulative totals per app.
package usage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one closed [Start, End) stretch of foreground use
type Session struct {
	ID      string    `json:"id"`
	App     string    `json:"app"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Seconds int       `json:"seconds"`
}

// AppUsage accumulates every session of one app
type AppUsage struct {
	Name         string    `json:"name"`
	TotalSeconds int       `json:"total_seconds"`
	LastActive   time.Time `json:"last_active"`
	Sessions     []Session `json:"sessions"`
}

// AppTotal is one row of a daily report
type AppTotal struct {
	App     string `json:"app"`
	Seconds int    `json:"seconds"`
}

// Ledger tracks which app is in the foreground and for how long
type Ledger struct {
	mu sync.RWMutex

	apps      map[string]*AppUsage
	lastApp   string
	openStart time.Time
	today     string // date string for daily pruning

	sink func(Session)
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{apps: make(map[string]*AppUsage)}
}

// SetSink registers a function called with every closed session (persistence)
func (l *Ledger) SetSink(fn func(Session)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = fn
}

// Switch records that app is in the foreground at now. If it differs from
// the previous app the previous session is closed and a new one opened.
// An empty app closes without opening.
func (l *Ledger) Switch(app string, now time.Time) {
	l.mu.Lock()
	if app == l.lastApp {
		l.mu.Unlock()
		return
	}
	l.checkDayRollover(now)
	closed, ok := l.closeLocked(now)
	if app != "" {
		l.openStart = now
		u := l.usageLocked(app)
		u.LastActive = now
	}
	l.lastApp = app
	sink := l.sink
	l.mu.Unlock()

	if ok && sink != nil {
		sink(closed)
	}
}

// Close ends the open session, if any (used when tracking stops)
func (l *Ledger) Close(now time.Time) {
	l.mu.Lock()
	closed, ok := l.closeLocked(now)
	l.lastApp = ""
	sink := l.sink
	l.mu.Unlock()

	if ok && sink != nil {
		sink(closed)
	}
}

func (l *Ledger) closeLocked(now time.Time) (Session, bool) {
	if l.lastApp == "" || l.openStart.IsZero() {
		return Session{}, false
	}
	seconds := int(now.Sub(l.openStart).Seconds())
	if seconds < 0 {
		seconds = 0
	}
	s := Session{
		ID:      uuid.New().String(),
		App:     l.lastApp,
		Start:   l.openStart,
		End:     now,
		Seconds: seconds,
	}
	u := l.usageLocked(l.lastApp)
	u.TotalSeconds += seconds
	u.LastActive = now
	u.Sessions = append(u.Sessions, s)
	l.openStart = time.Time{}
	return s, true
}

func (l *Ledger) usageLocked(app string) *AppUsage {
	u, ok := l.apps[app]
	if !ok {
		u = &AppUsage{Name: app}
		l.apps[app] = u
	}
	return u
}

// checkDayRollover drops sessions from previous days; totals are kept
func (l *Ledger) checkDayRollover(now time.Time) {
	day := now.Format("2006-01-02")
	if l.today == day {
		return
	}
	l.today = day
	midnight := startOfDay(now)
	for _, u := range l.apps {
		kept := u.Sessions[:0]
		for _, s := range u.Sessions {
			if !s.Start.Before(midnight) {
				kept = append(kept, s)
			}
		}
		u.Sessions = kept
	}
}

// Current returns the app whose session is open, "" if none
func (l *Ledger) Current() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastApp
}

// TodayStats returns per-app seconds for sessions started on now's date,
// including the open session up to now, sorted by seconds descending.
func (l *Ledger) TodayStats(now time.Time) []AppTotal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	midnight := startOfDay(now)
	totals := make(map[string]int)
	for name, u := range l.apps {
		for _, s := range u.Sessions {
			if !s.Start.Before(midnight) {
				totals[name] += s.Seconds
			}
		}
	}
	if l.lastApp != "" && !l.openStart.IsZero() && !l.openStart.Before(midnight) {
		if open := int(now.Sub(l.openStart).Seconds()); open > 0 {
			totals[l.lastApp] += open
		}
	}

	return sortTotals(totals)
}

// CategorySeconds sums the totals of apps whose name contains any of the
// patterns (case-insensitive)
func CategorySeconds(totals []AppTotal, patterns []string) int {
	sum := 0
	for _, t := range totals {
		name := strings.ToLower(t.App)
		for _, p := range patterns {
			if p != "" && strings.Contains(name, strings.ToLower(p)) {
				sum += t.Seconds
				break
			}
		}
	}
	return sum
}

// Usage returns a copy of one app's usage
func (l *Ledger) Usage(app string) (AppUsage, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	u, ok := l.apps[app]
	if !ok {
		return AppUsage{}, false
	}
	out := *u
	out.Sessions = append([]Session(nil), u.Sessions...)
	return out, true
}

func sortTotals(totals map[string]int) []AppTotal {
	out := make([]AppTotal, 0, len(totals))
	for app, secs := range totals {
		if secs > 0 {
			out = append(out, AppTotal{App: app, Seconds: secs})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seconds != out[j].Seconds {
			return out[i].Seconds > out[j].Seconds
		}
		return out[i].App < out[j].App
	})
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

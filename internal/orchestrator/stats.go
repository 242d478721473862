package orchestrator

import (
	"time"

	"github.com/vthunder/ambientflow/internal/logging"
	"github.com/vthunder/ambientflow/internal/types"
	"github.com/vthunder/ambientflow/internal/usage"
)

// Stats summarizes one day of usage
type Stats struct {
	Date                 string                 `json:"date"`
	Apps                 []usage.AppTotal       `json:"apps"`
	WorkSeconds          int                    `json:"work_seconds"`
	EntertainmentSeconds int                    `json:"entertainment_seconds"`
	ModeMinutes          map[types.UserMode]int `json:"mode_minutes,omitempty"`
	CurrentMode          types.UserMode         `json:"current_mode,omitempty"`
	WorkSessionMinutes   int                    `json:"work_session_minutes"`
}

// Stats reports today's usage up to now, including the open session
func (o *Orchestrator) Stats(now time.Time) Stats {
	cfg := o.Config()
	apps := o.ledger.TodayStats(now)

	s := Stats{
		Date:                 now.Format("2006-01-02"),
		Apps:                 apps,
		WorkSeconds:          usage.CategorySeconds(apps, cfg.WorkApps),
		EntertainmentSeconds: usage.CategorySeconds(apps, cfg.EntertainmentApps),
	}

	if latest, ok := o.Latest(); ok {
		s.CurrentMode = latest.Mode
		s.WorkSessionMinutes = latest.WorkSessionMinutes
	}

	if o.journal != nil {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		modes, err := o.journal.ModeMinutes(midnight, now)
		if err != nil {
			logging.Warn("orchestrator", "journal stats: %v", err)
		} else {
			s.ModeMinutes = modes
		}
	}
	return s
}

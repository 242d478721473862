package classifier

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/vthunder/ambientflow/internal/config"
	"github.com/vthunder/ambientflow/internal/types"
)

var warningTemplates = []string{
	"You've spent %d minutes on entertainment. Back to it?",
	"%d minutes of entertainment during work hours. Time to refocus.",
	"Heads up: %d minutes away from work so far.",
	"%d minutes have slipped by. What was the next task?",
	"Still on a break? That's %d minutes of entertainment.",
}

// WarningMessage picks a random template for minutes
func WarningMessage(minutes int) string {
	return fmt.Sprintf(warningTemplates[rand.IntN(len(warningTemplates))], minutes)
}

// WithinWorkHours reports whether now falls in [start, end). An end before
// the start wraps past midnight. Malformed times fall back to the defaults.
func WithinWorkHours(now time.Time, p config.ProcrastinationSettings) bool {
	d := config.DefaultProcrastination()
	start, err := config.ParseClock(p.WorkHoursStart)
	if err != nil {
		start, _ = config.ParseClock(d.WorkHoursStart)
	}
	end, err := config.ParseClock(p.WorkHoursEnd)
	if err != nil {
		end, _ = config.ParseClock(d.WorkHoursEnd)
	}

	cur := now.Hour()*60 + now.Minute()
	if start <= end {
		return cur >= start && cur < end
	}
	return cur >= start || cur < end
}

// checkProcrastination advances the entertainment dwell timer and decides
// whether a warning fires on this tick
func checkProcrastination(st State, mode types.UserMode, now time.Time, rules Rules) (State, types.Procrastination) {
	p := rules.Procrastination
	if !p.Enabled || !WithinWorkHours(now, p) || mode != types.ModeEntertainment {
		st.DwellStart = nil
		return st, types.Procrastination{}
	}

	if st.DwellStart == nil {
		start := now
		st.DwellStart = &start
	}
	minutes := int(now.Sub(*st.DwellStart).Minutes())

	threshold := p.WarningThresholdMinutes
	if threshold <= 0 {
		threshold = config.DefaultProcrastination().WarningThresholdMinutes
	}
	if minutes < threshold {
		return st, types.Procrastination{EntertainmentMinutes: minutes}
	}

	cooldown := time.Duration(p.CooldownMinutes) * time.Minute
	if st.LastWarning != nil && now.Sub(*st.LastWarning) < cooldown {
		// past the threshold but still cooling down
		return st, types.Procrastination{EntertainmentMinutes: minutes}
	}

	warned := now
	st.LastWarning = &warned
	msg := rules.Message
	if msg == nil {
		msg = WarningMessage
	}
	return st, types.Procrastination{
		Active:               true,
		EntertainmentMinutes: minutes,
		Message:              msg(minutes),
	}
}

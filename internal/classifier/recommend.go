package classifier

import "github.com/vthunder/ambientflow/internal/types"

const maxRecommendations = 3

// Recommend builds advice for the current mode, time of day and work
// session length. Duration comes first, then time of day, then mode.
func Recommend(mode types.UserMode, tod types.TimeOfDay, workMinutes int) []string {
	recs := make([]string, 0, maxRecommendations+1)

	switch {
	case workMinutes > 120:
		recs = append(recs, "Over two hours without a real break. Step away for 15 minutes.")
	case workMinutes > 90:
		recs = append(recs, "A long stretch of focus. Take a 10 minute break soon.")
	case workMinutes > 50:
		recs = append(recs, "Good moment for a short break and a glass of water.")
	case workMinutes > 25:
		recs = append(recs, "One focus block done. Plan a short break soon.")
	}

	switch tod {
	case types.Night:
		if mode.IsWork() || mode == types.ModeCommunication {
			recs = append(recs, "It's late. Wrap up and protect your sleep.")
		}
	case types.Evening:
		if mode == types.ModeDeepWork {
			recs = append(recs, "Evening: start winding down and note tomorrow's first task.")
		}
	case types.Morning:
		if mode == types.ModeEntertainment || mode == types.ModeIdle {
			recs = append(recs, "Mornings are your sharpest hours. Start with the hardest task.")
		}
	case types.Afternoon:
		if mode.IsWork() && workMinutes > 25 {
			recs = append(recs, "Afternoon slump: a short walk helps more than coffee.")
		}
	}

	switch mode {
	case types.ModeDeepWork:
		recs = append(recs,
			"Keep the screen at eye level and your shoulders relaxed.",
			"Steady background sound helps hold focus.")
	case types.ModeCommunication:
		recs = append(recs, "Keep ambient sound low while you're on calls.")
	case types.ModeResearch:
		recs = append(recs, "Jot down notes as you read so findings don't get lost.")
	case types.ModeCreative:
		recs = append(recs, "Notifications are held so nothing breaks your flow.")
	case types.ModeIdle:
		recs = append(recs, "Away from the desk? Start a break so the timer knows.")
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

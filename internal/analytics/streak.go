package analytics

import (
	"time"

	"habitforge/internal/model"
)

// CalculateStreak counts consecutive completed days ending today. A day
// missing today yields zero even when yesterday and earlier were completed.
func CalculateStreak(dates model.DateSet, today time.Time) int {
	if dates.Len() == 0 {
		return 0
	}
	streak := 0
	for dates.Has(dateKey(today, -streak)) {
		streak++
	}
	return streak
}

// BestStreak is the largest current streak across habits, 0 without habits.
func BestStreak(habits []model.Habit, m model.CompletionMap, today time.Time) int {
	best := 0
	for _, h := range habits {
		if s := CalculateStreak(m.Dates(h.ID), today); s > best {
			best = s
		}
	}
	return best
}

// TotalStreak sums the current streaks of all habits.
func TotalStreak(habits []model.Habit, m model.CompletionMap, today time.Time) int {
	total := 0
	for _, h := range habits {
		total += CalculateStreak(m.Dates(h.ID), today)
	}
	return total
}

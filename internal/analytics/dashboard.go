package analytics

import (
	"time"

	"habitforge/internal/model"
)

type HabitSummary struct {
	HabitID        string `json:"habit_id"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	Streak         int    `json:"streak"`
	CompletionRate int    `json:"completion_rate"`
	CompletedToday bool   `json:"completed_today"`
}

// Dashboard bundles every derived view for one snapshot and day.
type Dashboard struct {
	Date             string         `json:"date"`
	ActiveHabits     int            `json:"active_habits"`
	WeeklyTrend      []int          `json:"weekly_trend"`
	WeeklyLabels     []string       `json:"weekly_labels"`
	AverageWeekly    int            `json:"average_weekly"`
	TrendingUp       bool           `json:"trending_up"`
	WeeklyMessage    string         `json:"weekly_message"`
	BestStreak       int            `json:"best_streak"`
	MonthCompletions int            `json:"month_completions"`
	Monthly          MonthlyBuckets `json:"monthly"`
	Calendar         []CalendarDay  `json:"calendar"`
	Habits           []HabitSummary `json:"habits"`
	Insight          string         `json:"insight"`
	InsightBucket    string         `json:"insight_bucket"`
}

// Compute derives the full dashboard. Only the insight depends on g's picker.
func Compute(habits []model.Habit, m model.CompletionMap, today time.Time, g *Generator) *Dashboard {
	trend := WeeklyTrend(habits, m, today)
	avg := AverageWeeklyCompletion(trend)
	todayKey := dateKey(today, 0)

	summaries := make([]HabitSummary, 0, len(habits))
	for _, h := range habits {
		dates := m.Dates(h.ID)
		summaries = append(summaries, HabitSummary{
			HabitID:        h.ID,
			Name:           h.Name,
			Color:          h.Color,
			Streak:         CalculateStreak(dates, today),
			CompletionRate: CompletionRate(h.ID, m),
			CompletedToday: dates.Has(todayKey),
		})
	}

	bucket, total := Classify(habits, m, today)
	return &Dashboard{
		Date:             todayKey,
		ActiveHabits:     len(habits),
		WeeklyTrend:      trend,
		WeeklyLabels:     WeeklyLabels(today),
		AverageWeekly:    avg,
		TrendingUp:       avg >= 50,
		WeeklyMessage:    WeeklyMessage(avg),
		BestStreak:       BestStreak(habits, m, today),
		MonthCompletions: MonthCompletions(m, today),
		Monthly:          ComputeMonthlyBuckets(habits, m, today),
		Calendar:         CalendarGrid(habits, m, today),
		Habits:           summaries,
		Insight:          g.Render(bucket, total),
		InsightBucket:    bucket.String(),
	}
}

// WeeklyMessage is the banner shown next to the average weekly completion.
func WeeklyMessage(avg int) string {
	switch {
	case avg >= 80:
		return "Outstanding! You're crushing it! Keep up the amazing work."
	case avg >= 60:
		return "Great progress! You're building strong habits."
	case avg >= 40:
		return "Good start! Stay consistent to see better results."
	default:
		return "Every step counts! Focus on one habit at a time."
	}
}

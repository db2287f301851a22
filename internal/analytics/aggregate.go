package analytics

import (
	"time"

	"habitforge/internal/model"
)

const (
	trendDays = 7
	// RateWindowDays is the fixed denominator of CompletionRate. It does not
	// account for habit age.
	RateWindowDays = 30
)

// WeeklyTrend returns the completion percentage for each of the last seven
// days, oldest first and today last.
func WeeklyTrend(habits []model.Habit, m model.CompletionMap, today time.Time) []int {
	trend := make([]int, trendDays)
	for i := range trend {
		date := dateKey(today, i-(trendDays-1))
		trend[i] = percent(completedOn(habits, m, date), len(habits))
	}
	return trend
}

// WeeklyLabels returns short weekday names aligned with WeeklyTrend.
func WeeklyLabels(today time.Time) []string {
	labels := make([]string, trendDays)
	for i := range labels {
		labels[i] = dayOffset(today, i-(trendDays-1)).Weekday().String()[:3]
	}
	return labels
}

// AverageWeeklyCompletion is the mean of a trend rounded half up.
func AverageWeeklyCompletion(trend []int) int {
	if len(trend) == 0 {
		return 0
	}
	sum := 0
	for _, v := range trend {
		sum += v
	}
	return (2*sum + len(trend)) / (2 * len(trend))
}

// MonthCompletions counts every completion in the map, whether or not its
// habit is still listed, that falls in today's month and year.
func MonthCompletions(m model.CompletionMap, today time.Time) int {
	count := 0
	for _, dates := range m {
		for d := range dates {
			t, err := time.Parse(model.DateLayout, d)
			if err != nil {
				continue
			}
			if t.Year() == today.Year() && t.Month() == today.Month() {
				count++
			}
		}
	}
	return count
}

type MonthlyBuckets struct {
	Labels [4]string `json:"labels"`
	Values [4]int    `json:"values"`
}

// ComputeMonthlyBuckets splits the last 28 days into four 7-day buckets,
// oldest first, and counts completions across habits in each.
func ComputeMonthlyBuckets(habits []model.Habit, m model.CompletionMap, today time.Time) MonthlyBuckets {
	b := MonthlyBuckets{Labels: [4]string{"Week 1", "Week 2", "Week 3", "Week 4"}}
	for i := 0; i < 28; i++ {
		b.Values[i/7] += completedOn(habits, m, dateKey(today, i-27))
	}
	return b
}

// CompletionRate is round(100 * distinct completion days / 30). It is not
// clamped, so long-lived habits can exceed 100.
func CompletionRate(habitID string, m model.CompletionMap) int {
	return percent(m.Dates(habitID).Len(), RateWindowDays)
}

func completedOn(habits []model.Habit, m model.CompletionMap, date string) int {
	n := 0
	for _, h := range habits {
		if m.Dates(h.ID).Has(date) {
			n++
		}
	}
	return n
}

package analytics

import (
	"time"

	"habitforge/internal/model"
)

const (
	calendarWeeks = 5
	calendarDays  = calendarWeeks * 7
)

type CalendarDay struct {
	Date           string `json:"date"`
	DayOfMonth     int    `json:"day_of_month"`
	CompletedCount int    `json:"completed_count"`
	Level          int    `json:"level"`
	IsToday        bool   `json:"is_today"`
	IsFuture       bool   `json:"is_future"`
}

// CalendarGrid returns five Sunday-start weeks ending with the week that
// contains today.
func CalendarGrid(habits []model.Habit, m model.CompletionMap, today time.Time) []CalendarDay {
	todayKey := dateKey(today, 0)
	start := -int(today.Weekday()) - 28

	days := make([]CalendarDay, 0, calendarDays)
	for i := 0; i < calendarDays; i++ {
		d := dayOffset(today, start+i)
		key := model.FormatDate(d)
		count := completedOn(habits, m, key)
		days = append(days, CalendarDay{
			Date:           key,
			DayOfMonth:     d.Day(),
			CompletedCount: count,
			Level:          CompletionLevel(count, len(habits)),
			IsToday:        key == todayKey,
			IsFuture:       key > todayKey,
		})
	}
	return days
}

// CompletionLevel buckets a day into 0-4. Level 4 is reserved for days on
// which every habit was completed; otherwise the share of completed habits,
// truncated to a whole percent, selects 1 (up to 33), 2 (up to 66) or 3.
// Truncation keeps 1 of 3 habits at level 1 and 2 of 3 at level 2.
func CompletionLevel(completed, total int) int {
	if completed <= 0 || total <= 0 {
		return 0
	}
	if completed >= total {
		return 4
	}
	switch pct := 100 * completed / total; {
	case pct <= 33:
		return 1
	case pct <= 66:
		return 2
	default:
		return 3
	}
}

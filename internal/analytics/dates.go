package analytics

import (
	"time"

	"habitforge/internal/model"
)

// dayOffset returns the calendar day offset days away from t, anchored at noon
// so DST transitions never move it onto a neighbouring date.
func dayOffset(t time.Time, offset int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+offset, 12, 0, 0, 0, t.Location())
}

func dateKey(t time.Time, offset int) string {
	return model.FormatDate(dayOffset(t, offset))
}

// percent rounds 100*part/whole half up without going through floats.
func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return (200*part + whole) / (2 * whole)
}

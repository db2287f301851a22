package model

import (
	"sort"
	"time"
)

// DateLayout is the canonical calendar-day format used for every completion.
const DateLayout = "2006-01-02"

// FormatDate renders the calendar day of t in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a canonical date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

type Completion struct {
	HabitID     string    `json:"habit_id"`
	UserID      int       `json:"user_id"`
	Date        string    `json:"date"`
	CompletedAt time.Time `json:"completed_at"`
}

// DateSet is the set of days a single habit was completed on.
type DateSet map[string]struct{}

// NewDateSet collapses duplicates in dates.
func NewDateSet(dates ...string) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

func (s DateSet) Has(date string) bool {
	_, ok := s[date]
	return ok
}

func (s DateSet) Len() int {
	return len(s)
}

// Sorted returns the dates newest first.
func (s DateSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// CompletionMap maps a habit ID to its completion days. A habit without an
// entry has no completions.
type CompletionMap map[string]DateSet

// NewCompletionMap builds a map from raw per-habit date lists.
func NewCompletionMap(raw map[string][]string) CompletionMap {
	m := make(CompletionMap, len(raw))
	for id, dates := range raw {
		m[id] = NewDateSet(dates...)
	}
	return m
}

// Dates never returns nil.
func (m CompletionMap) Dates(habitID string) DateSet {
	if s, ok := m[habitID]; ok && s != nil {
		return s
	}
	return DateSet{}
}

// Add records a completion, creating the habit's set if needed.
func (m CompletionMap) Add(habitID, date string) {
	s, ok := m[habitID]
	if !ok || s == nil {
		s = DateSet{}
		m[habitID] = s
	}
	s[date] = struct{}{}
}

package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
	FrequencyCustom Frequency = "custom"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyCustom:
		return true
	}
	return false
}

type Category string

const (
	CategoryGeneral      Category = "general"
	CategoryHealth       Category = "health"
	CategoryFitness      Category = "fitness"
	CategoryMindfulness  Category = "mindfulness"
	CategoryLearning     Category = "learning"
	CategoryProductivity Category = "productivity"
	CategorySocial       Category = "social"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryHealth, CategoryFitness, CategoryMindfulness,
		CategoryLearning, CategoryProductivity, CategorySocial:
		return true
	}
	return false
}

// DefaultColor is the teal used when a habit is created without a color.
const DefaultColor = "#0d9488"

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ErrInvalidHabit wraps every validation failure returned by Validate.
var ErrInvalidHabit = errors.New("invalid habit")

type Habit struct {
	ID           string        `json:"id"`
	UserID       int           `json:"user_id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Frequency    Frequency     `json:"frequency"`
	ReminderTime *ReminderTime `json:"reminder_time,omitempty"`
	Categories   []Category    `json:"categories"`
	Color        string        `json:"color"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Normalize trims user input and fills defaults in place.
func (h *Habit) Normalize() {
	h.Name = strings.TrimSpace(h.Name)
	h.Description = strings.TrimSpace(h.Description)
	if h.Frequency == "" {
		h.Frequency = FrequencyDaily
	}
	if len(h.Categories) == 0 {
		h.Categories = []Category{CategoryGeneral}
	}
	if h.Color == "" {
		h.Color = DefaultColor
	}
}

// Validate expects a normalized habit.
func (h *Habit) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidHabit)
	}
	if len(h.Name) > 120 {
		return fmt.Errorf("%w: name is longer than 120 characters", ErrInvalidHabit)
	}
	if !h.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidHabit, h.Frequency)
	}
	seen := make(map[Category]bool, len(h.Categories))
	for _, c := range h.Categories {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidHabit, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidHabit, c)
		}
		seen[c] = true
	}
	if !colorPattern.MatchString(h.Color) {
		return fmt.Errorf("%w: color must look like #rrggbb", ErrInvalidHabit)
	}
	return nil
}

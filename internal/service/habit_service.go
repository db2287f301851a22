package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"habitforge/internal/model"
	"habitforge/pkg/logger"
	"habitforge/pkg/metrics"
)

type HabitStore interface {
	Create(ctx context.Context, h *model.Habit) error
	ListByUser(ctx context.Context, userID int) ([]model.Habit, error)
	Get(ctx context.Context, userID int, habitID string) (*model.Habit, error)
	Delete(ctx context.Context, userID int, habitID string) error
}

type CompletionStore interface {
	Toggle(ctx context.Context, userID int, habitID, date string) (bool, error)
	Dates(ctx context.Context, userID int, habitID string) ([]string, error)
	ByUser(ctx context.Context, userID int) (model.CompletionMap, error)
}

// Invalidator drops derived state after a user's snapshot changed.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int)
}

type CreateHabitInput struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Frequency    string   `json:"frequency"`
	ReminderTime *string  `json:"reminder_time"`
	Categories   []string `json:"categories"`
	Color        string   `json:"color"`
}

type HabitService struct {
	habits      HabitStore
	completions CompletionStore
	invalidator Invalidator
	now         func() time.Time
	logger      *zap.Logger
}

func NewHabitService(habits HabitStore, completions CompletionStore, invalidator Invalidator, logger *zap.Logger) *HabitService {
	return &HabitService{
		habits:      habits,
		completions: completions,
		invalidator: invalidator,
		now:         time.Now,
		logger:      logger,
	}
}

func (s *HabitService) Create(ctx context.Context, userID int, in CreateHabitInput) (*model.Habit, error) {
	h := &model.Habit{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		Frequency:   model.Frequency(strings.ToLower(strings.TrimSpace(in.Frequency))),
		Color:       strings.TrimSpace(in.Color),
	}
	for _, c := range in.Categories {
		h.Categories = append(h.Categories, model.Category(strings.ToLower(strings.TrimSpace(c))))
	}
	if in.ReminderTime != nil && strings.TrimSpace(*in.ReminderTime) != "" {
		rt, err := model.ParseReminderTime(strings.TrimSpace(*in.ReminderTime))
		if err != nil {
			return nil, err
		}
		h.ReminderTime = &rt
	}

	h.Normalize()
	if err := h.Validate(); err != nil {
		return nil, err
	}

	if err := s.habits.Create(ctx, h); err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}

	metrics.IncrementHabitsCreated()
	s.changed(ctx, userID)
	logger.WithTrace(ctx, s.logger).Info("Habit created",
		zap.Int("user_id", userID),
		zap.String("habit_id", h.ID),
	)
	return h, nil
}

// List returns the user's habits newest first.
func (s *HabitService) List(ctx context.Context, userID int) ([]model.Habit, error) {
	habits, err := s.habits.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	return habits, nil
}

func (s *HabitService) Delete(ctx context.Context, userID int, habitID string) error {
	if !validID(habitID) {
		return model.ErrHabitNotFound
	}
	if err := s.habits.Delete(ctx, userID, habitID); err != nil {
		return err
	}
	s.changed(ctx, userID)
	logger.WithTrace(ctx, s.logger).Info("Habit deleted",
		zap.Int("user_id", userID),
		zap.String("habit_id", habitID),
	)
	return nil
}

// ToggleCompletion flips the habit's completion on date, which defaults to
// today in loc. Dates after today in loc are rejected.
func (s *HabitService) ToggleCompletion(ctx context.Context, userID int, habitID, date string, loc *time.Location) (bool, error) {
	if !validID(habitID) {
		return false, model.ErrHabitNotFound
	}
	today := model.FormatDate(s.now().In(loc))
	if date == "" {
		date = today
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return false, model.ErrInvalidDate
	}
	if date > today {
		return false, model.ErrFutureDate
	}

	completed, err := s.completions.Toggle(ctx, userID, habitID, date)
	if err != nil {
		return false, err
	}

	metrics.RecordCompletionToggle(completed)
	s.changed(ctx, userID)
	return completed, nil
}

// CompletionDates returns the habit's completion days newest first.
func (s *HabitService) CompletionDates(ctx context.Context, userID int, habitID string) ([]string, error) {
	if !validID(habitID) {
		return nil, model.ErrHabitNotFound
	}
	if _, err := s.habits.Get(ctx, userID, habitID); err != nil {
		return nil, err
	}
	dates, err := s.completions.Dates(ctx, userID, habitID)
	if err != nil {
		return nil, fmt.Errorf("completion dates: %w", err)
	}
	if dates == nil {
		dates = []string{}
	}
	return dates, nil
}

// Snapshot loads the user's habits and completions.
func (s *HabitService) Snapshot(ctx context.Context, userID int) ([]model.Habit, model.CompletionMap, error) {
	return StoreSnapshot{Habits: s.habits, Completions: s.completions}.Snapshot(ctx, userID)
}

// StoreSnapshot reads a snapshot straight from the stores in two queries.
type StoreSnapshot struct {
	Habits      HabitStore
	Completions CompletionStore
}

func (l StoreSnapshot) Snapshot(ctx context.Context, userID int) ([]model.Habit, model.CompletionMap, error) {
	habits, err := l.Habits.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load habits: %w", err)
	}
	completions, err := l.Completions.ByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load completions: %w", err)
	}
	return habits, completions, nil
}

func (s *HabitService) changed(ctx context.Context, userID int) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, userID)
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	contractsmq "habitforge/contracts/mq"
	"habitforge/internal/model"
	"habitforge/pkg/circuitbreaker"
	"habitforge/pkg/metrics"
)

const reminderDedupScope = "reminder"

// maxReminderCatchUp bounds how many missed minutes one tick replays.
const maxReminderCatchUp = 60

type ReminderHabitStore interface {
	ListByReminder(ctx context.Context, hhmm string) ([]model.Habit, error)
}

type CompletedOnStore interface {
	CompletedOn(ctx context.Context, habitIDs []string, date string) (map[string]bool, error)
}

type EventPublisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

type OnceGuard interface {
	AcquireOnce(ctx context.Context, scope, id string) bool
	Release(ctx context.Context, scope, id string)
}

// ReminderService emits habit.reminder.due for habits whose reminder time
// matches the current minute.
type ReminderService struct {
	habits      ReminderHabitStore
	completions CompletedOnStore
	publisher   EventPublisher
	once        OnceGuard
	breaker     *circuitbreaker.CircuitBreaker
	loc         *time.Location
	now         func() time.Time
	logger      *zap.Logger

	// last is the most recent minute fully processed, zero before the first tick.
	last time.Time
}

func NewReminderService(
	habits ReminderHabitStore,
	completions CompletedOnStore,
	publisher EventPublisher,
	once OnceGuard,
	breaker *circuitbreaker.CircuitBreaker,
	loc *time.Location,
	logger *zap.Logger,
) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{
		habits:      habits,
		completions: completions,
		publisher:   publisher,
		once:        once,
		breaker:     breaker,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}
}

// Run ticks every interval until ctx is done.
func (s *ReminderService) Run(ctx context.Context, interval time.Duration) {
	s.logger.Info("Reminder scheduler started",
		zap.Duration("interval", interval),
		zap.String("timezone", s.loc.String()),
	)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reminder scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("Reminder tick failed", zap.Error(err))
			}
		}
	}
}

// Tick publishes due reminders for every minute since the previous
// successful tick, up to and including the current one, and returns how many
// were published. The first tick only covers the current minute. Tick is not
// safe for concurrent use.
func (s *ReminderService) Tick(ctx context.Context) (int, error) {
	current := s.now().In(s.loc).Truncate(time.Minute)

	if s.last.IsZero() {
		s.last = current.Add(-time.Minute)
	}
	if !s.last.Before(current) {
		return 0, nil
	}
	from := s.last.Add(time.Minute)
	if oldest := current.Add(-(maxReminderCatchUp - 1) * time.Minute); from.Before(oldest) {
		s.logger.Warn("Reminder scheduler fell behind, skipping minutes",
			zap.Time("from", from),
			zap.Time("resume", oldest),
		)
		from = oldest
	}

	total := 0
	for minute := from; !minute.After(current); minute = minute.Add(time.Minute) {
		n, err := s.tickMinute(ctx, minute)
		total += n
		if err != nil {
			return total, err
		}
		s.last = minute
	}
	return total, nil
}

func (s *ReminderService) tickMinute(ctx context.Context, minute time.Time) (int, error) {
	hhmm := model.ReminderTime{Hour: minute.Hour(), Minute: minute.Minute()}.String()
	date := model.FormatDate(minute)

	habits, err := s.habits.ListByReminder(ctx, hhmm)
	if err != nil {
		return 0, fmt.Errorf("list reminders: %w", err)
	}
	if len(habits) == 0 {
		return 0, nil
	}

	ids := make([]string, len(habits))
	for i, h := range habits {
		ids[i] = h.ID
	}
	done, err := s.completions.CompletedOn(ctx, ids, date)
	if err != nil {
		return 0, fmt.Errorf("check completions: %w", err)
	}

	published := 0
	var errs []error
	for _, h := range habits {
		if done[h.ID] {
			metrics.IncrementReminder("skipped")
			continue
		}
		key := h.ID + ":" + date
		if !s.once.AcquireOnce(ctx, reminderDedupScope, key) {
			metrics.IncrementReminder("skipped")
			continue
		}

		payload := contractsmq.HabitReminderDuePayload{
			HabitID:      h.ID,
			UserID:       h.UserID,
			Name:         h.Name,
			Date:         date,
			ReminderTime: hhmm,
		}
		err := s.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
			return s.publisher.PublishWithContext(ctx, contractsmq.RoutingKeyHabitReminderDue, payload)
		})
		if err != nil {
			s.once.Release(ctx, reminderDedupScope, key)
			metrics.IncrementReminder("failed")
			errs = append(errs, fmt.Errorf("habit %s: %w", h.ID, err))
			if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
				break
			}
			continue
		}

		metrics.IncrementReminder("published")
		published++
		s.logger.Debug("Reminder published",
			zap.String("habit_id", h.ID),
			zap.Int("user_id", h.UserID),
			zap.String("date", date),
		)
	}

	return published, errors.Join(errs...)
}

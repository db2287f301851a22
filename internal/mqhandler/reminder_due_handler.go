package mqhandler

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"habitforge/contracts/mq"
	"habitforge/pkg/logger"
	"habitforge/pkg/util"
)

const reminderDeliveryScope = "reminder-delivery"

// OnceGuard reports whether an id is seen for the first time in a scope.
// Release forgets the id so a later attempt can acquire it again.
type OnceGuard interface {
	AcquireOnce(ctx context.Context, scope, id string) bool
	Release(ctx context.Context, scope, id string)
}

// Delivery hands a due reminder to whatever reaches the user's device.
type Delivery interface {
	Deliver(ctx context.Context, p mq.HabitReminderDuePayload) error
}

// LogDelivery only records the reminder. Device delivery is not part of this
// service.
type LogDelivery struct {
	Logger *zap.Logger
}

func (d LogDelivery) Deliver(ctx context.Context, p mq.HabitReminderDuePayload) error {
	logger.WithTrace(ctx, d.Logger).Info("Reminder due",
		zap.Int("user_id", p.UserID),
		zap.String("habit_id", p.HabitID),
		zap.String("name", p.Name),
		zap.String("date", p.Date),
		zap.String("reminder_time", p.ReminderTime),
	)
	return nil
}

type ReminderDueHandler struct {
	once     OnceGuard
	delivery Delivery
	logger   *zap.Logger
}

func NewReminderDueHandler(once OnceGuard, delivery Delivery, logger *zap.Logger) *ReminderDueHandler {
	return &ReminderDueHandler{
		once:     once,
		delivery: delivery,
		logger:   logger,
	}
}

// HandleReminderDue delivers each (habit, date) reminder at most once, so a
// redelivered message does not nag the user twice. A failed delivery gives
// the key back so the retry can deliver it.
func (h *ReminderDueHandler) HandleReminderDue(ctx context.Context, raw json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var p mq.HabitReminderDuePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error("Failed to unmarshal reminder payload", zap.Error(err))
		return util.Permanent(err)
	}
	if p.HabitID == "" || p.Date == "" {
		return util.Permanent(errors.New("reminder payload missing habit_id or date"))
	}

	key := p.HabitID + ":" + p.Date
	if h.once != nil && !h.once.AcquireOnce(ctx, reminderDeliveryScope, key) {
		return nil
	}

	if err := h.delivery.Deliver(ctx, p); err != nil {
		if h.once != nil {
			h.once.Release(ctx, reminderDeliveryScope, key)
		}
		log.Error("Failed to deliver reminder",
			zap.String("habit_id", p.HabitID),
			zap.Int("user_id", p.UserID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

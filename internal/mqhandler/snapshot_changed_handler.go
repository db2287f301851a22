package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"habitforge/contracts/mq"
	"habitforge/pkg/logger"
	"habitforge/pkg/util"
)

// Invalidator drops a user's derived analytics and wakes their open streams.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int)
}

// SnapshotChangedHandler consumes habit.created, habit.deleted and
// completion.toggled. All three only need the user id.
type SnapshotChangedHandler struct {
	analytics Invalidator
	logger    *zap.Logger
}

func NewSnapshotChangedHandler(analytics Invalidator, logger *zap.Logger) *SnapshotChangedHandler {
	return &SnapshotChangedHandler{
		analytics: analytics,
		logger:    logger,
	}
}

// HandleSnapshotChanged -- 失效缓存并通知 SSE 订阅者
func (h *SnapshotChangedHandler) HandleSnapshotChanged(ctx context.Context, raw json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var p mq.UserEvent
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error("Failed to unmarshal habit event payload", zap.Error(err))
		return util.Permanent(err)
	}
	if p.UserID <= 0 {
		log.Error("Habit event without user id", zap.String("habit_id", p.HabitID))
		return util.Permanent(fmt.Errorf("habit event %q: missing user_id", p.HabitID))
	}

	h.analytics.Invalidate(ctx, p.UserID)

	log.Debug("Analytics invalidated",
		zap.Int("user_id", p.UserID),
		zap.String("habit_id", p.HabitID),
	)
	return nil
}

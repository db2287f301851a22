package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	contractsmq "habitforge/contracts/mq"
	"habitforge/internal/model"
	"habitforge/pkg/outbox"
	"habitforge/pkg/trace"
)

type HabitRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewHabitRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *HabitRepository {
	return &HabitRepository{
		db:     db,
		outbox: outboxRepo,
		logger: logger,
	}
}

const habitColumns = `id::text, user_id, name, description, frequency, reminder_time, categories, color, created_at`

// Create inserts h and its habit.created event in one transaction. h.ID must
// already be set.
func (r *HabitRepository) Create(ctx context.Context, h *model.Habit) error {
	r.logger.Debug("Inserting habit",
		zap.Int("user_id", h.UserID),
		zap.String("habit_id", h.ID),
		zap.String("name", h.Name),
	)

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
            INSERT INTO habits (id, user_id, name, description, frequency, reminder_time, categories, color)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            RETURNING created_at
        `
		err := tx.QueryRow(ctx, query,
			h.ID,
			h.UserID,
			h.Name,
			h.Description,
			string(h.Frequency),
			reminderValue(h.ReminderTime),
			categoryStrings(h.Categories),
			h.Color,
		).Scan(&h.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert habit: %w", err)
		}

		return outbox.InsertEventInTx(ctx, tx, r.outbox,
			contractsmq.AggregateTypeHabit, h.ID, contractsmq.RoutingKeyHabitCreated,
			contractsmq.HabitCreatedPayload{
				HabitID: h.ID,
				UserID:  h.UserID,
				Name:    h.Name,
				TraceID: trace.FromContext(ctx),
			})
	})
}

// ListByUser returns the user's habits newest first.
func (r *HabitRepository) ListByUser(ctx context.Context, userID int) ([]model.Habit, error) {
	r.logger.Debug("Listing habits for user", zap.Int("user_id", userID))

	query := `SELECT ` + habitColumns + `
        FROM habits
        WHERE user_id = $1
        ORDER BY created_at DESC, id`
	return r.query(ctx, query, userID)
}

// ListByReminder returns every habit whose reminder time is hhmm.
func (r *HabitRepository) ListByReminder(ctx context.Context, hhmm string) ([]model.Habit, error) {
	query := `SELECT ` + habitColumns + `
        FROM habits
        WHERE reminder_time = $1
        ORDER BY user_id, id`
	return r.query(ctx, query, hhmm)
}

func (r *HabitRepository) Get(ctx context.Context, userID int, habitID string) (*model.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1::uuid AND user_id = $2`
	habits, err := r.query(ctx, query, habitID, userID)
	if err != nil {
		return nil, err
	}
	if len(habits) == 0 {
		return nil, model.ErrHabitNotFound
	}
	return &habits[0], nil
}

// Delete removes the habit, its completions via cascade, and records habit.deleted.
func (r *HabitRepository) Delete(ctx context.Context, userID int, habitID string) error {
	r.logger.Debug("Deleting habit", zap.Int("user_id", userID), zap.String("habit_id", habitID))

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM habits WHERE id = $1::uuid AND user_id = $2`, habitID, userID)
		if err != nil {
			return fmt.Errorf("delete habit: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrHabitNotFound
		}

		return outbox.InsertEventInTx(ctx, tx, r.outbox,
			contractsmq.AggregateTypeHabit, habitID, contractsmq.RoutingKeyHabitDeleted,
			contractsmq.HabitDeletedPayload{
				HabitID: habitID,
				UserID:  userID,
				TraceID: trace.FromContext(ctx),
			})
	})
}

func (r *HabitRepository) query(ctx context.Context, query string, args ...any) ([]model.Habit, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query habits", zap.Error(err))
		return nil, fmt.Errorf("query habits: %w", err)
	}
	defer rows.Close()

	habits := []model.Habit{}
	for rows.Next() {
		var (
			h          model.Habit
			frequency  string
			reminder   *string
			categories []string
		)
		if err := rows.Scan(
			&h.ID,
			&h.UserID,
			&h.Name,
			&h.Description,
			&frequency,
			&reminder,
			&categories,
			&h.Color,
			&h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}

		h.Frequency = model.Frequency(frequency)
		for _, c := range categories {
			h.Categories = append(h.Categories, model.Category(c))
		}
		if reminder != nil {
			rt, err := model.ParseReminderTime(*reminder)
			if err != nil {
				r.logger.Warn("Ignoring malformed stored reminder time",
					zap.String("habit_id", h.ID),
					zap.String("reminder_time", *reminder),
				)
			} else {
				h.ReminderTime = &rt
			}
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func reminderValue(rt *model.ReminderTime) *string {
	if rt == nil {
		return nil
	}
	s := rt.String()
	return &s
}

func categoryStrings(cs []model.Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

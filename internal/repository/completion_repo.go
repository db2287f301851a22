package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	contractsmq "habitforge/contracts/mq"
	"habitforge/internal/model"
	"habitforge/pkg/outbox"
	"habitforge/pkg/trace"
)

type CompletionRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewCompletionRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *CompletionRepository {
	return &CompletionRepository{db: db, outbox: outboxRepo, logger: logger}
}

// Toggle flips the completion of habitID on date and reports whether the
// habit is completed afterwards. The completion.toggled event is written in
// the same transaction.
func (r *CompletionRepository) Toggle(ctx context.Context, userID int, habitID, date string) (bool, error) {
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return false, model.ErrInvalidDate
	}

	var completed bool
	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var owner int
		err := tx.QueryRow(ctx,
			`SELECT user_id FROM habits WHERE id = $1::uuid AND user_id = $2 FOR UPDATE`,
			habitID, userID,
		).Scan(&owner)
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrHabitNotFound
		}
		if err != nil {
			return fmt.Errorf("lock habit: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM habit_completions WHERE habit_id = $1::uuid AND completed_on = $2`,
			habitID, day,
		)
		if err != nil {
			return fmt.Errorf("delete completion: %w", err)
		}

		if tag.RowsAffected() == 0 {
			_, err = tx.Exec(ctx, `
                INSERT INTO habit_completions (habit_id, user_id, completed_on, completed_at)
                VALUES ($1::uuid, $2, $3, NOW())
            `, habitID, userID, day)
			if err != nil {
				return fmt.Errorf("insert completion: %w", err)
			}
			completed = true
		}

		return outbox.InsertEventInTx(ctx, tx, r.outbox,
			contractsmq.AggregateTypeHabit, habitID, contractsmq.RoutingKeyCompletionToggled,
			contractsmq.CompletionToggledPayload{
				HabitID:   habitID,
				UserID:    userID,
				Date:      date,
				Completed: completed,
				TraceID:   trace.FromContext(ctx),
			})
	})
	if err != nil {
		return false, err
	}

	r.logger.Debug("Completion toggled",
		zap.Int("user_id", userID),
		zap.String("habit_id", habitID),
		zap.String("date", date),
		zap.Bool("completed", completed),
	)
	return completed, nil
}

// Dates returns the completion days of one habit, newest first.
func (r *CompletionRepository) Dates(ctx context.Context, userID int, habitID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
        SELECT to_char(completed_on, 'YYYY-MM-DD')
        FROM habit_completions
        WHERE habit_id = $1::uuid AND user_id = $2
        ORDER BY completed_on DESC
    `, habitID, userID)
	if err != nil {
		return nil, fmt.Errorf("query completion dates: %w", err)
	}
	dates, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect completion dates: %w", err)
	}
	return dates, nil
}

// ByUser returns every completion of the user grouped by habit.
func (r *CompletionRepository) ByUser(ctx context.Context, userID int) (model.CompletionMap, error) {
	rows, err := r.db.Query(ctx, `
        SELECT habit_id::text, to_char(completed_on, 'YYYY-MM-DD')
        FROM habit_completions
        WHERE user_id = $1
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	m := model.CompletionMap{}
	for rows.Next() {
		var habitID, date string
		if err := rows.Scan(&habitID, &date); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		m.Add(habitID, date)
	}
	return m, rows.Err()
}

// CompletedOn reports which of habitIDs have a completion on date.
func (r *CompletionRepository) CompletedOn(ctx context.Context, habitIDs []string, date string) (map[string]bool, error) {
	done := make(map[string]bool, len(habitIDs))
	if len(habitIDs) == 0 {
		return done, nil
	}
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, model.ErrInvalidDate
	}

	rows, err := r.db.Query(ctx, `
        SELECT habit_id::text
        FROM habit_completions
        WHERE completed_on = $1 AND habit_id = ANY($2::uuid[])
    `, day, habitIDs)
	if err != nil {
		return nil, fmt.Errorf("query completed habits: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect completed habits: %w", err)
	}
	for _, id := range ids {
		done[id] = true
	}
	return done, nil
}

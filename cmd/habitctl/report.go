package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"habitforge/internal/analytics"
	"habitforge/internal/model"
	"habitforge/internal/repository"
	"habitforge/internal/service"
	"habitforge/pkg/outbox"
)

func newReportCmd() *cobra.Command {
	var (
		userID int
		date   string
		tz     string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a user's analytics dashboard as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user is required")
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if tz == "" {
				tz = e.cfg.Analytics.Timezone
			}
			today, err := reportDay(date, tz, time.Now())
			if err != nil {
				return err
			}

			outboxRepo := outbox.NewRepository(e.pool)
			loader := service.StoreSnapshot{
				Habits:      repository.NewHabitRepository(e.pool, outboxRepo, e.log),
				Completions: repository.NewCompletionRepository(e.pool, outboxRepo, e.log),
			}
			svc := service.NewAnalyticsService(loader, nil, nil, analytics.NewGenerator(analytics.FixedPicker(0)), e.log)

			d, err := svc.Compute(ctx, userID, today)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), d)
		},
	}
	cmd.Flags().IntVar(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&date, "date", "", "day to report on as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA zone the day is computed in (default analytics.timezone)")
	return cmd
}

// reportDay resolves the reporting day in tz. An empty date means the day of now.
func reportDay(date, tz string, now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("--tz %q: %w", tz, model.ErrInvalidTimezone)
	}
	if date == "" {
		return now.In(loc), nil
	}
	day, err := model.ParseDate(date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date %q: %w", date, model.ErrInvalidDate)
	}
	return day.Add(12 * time.Hour), nil
}

func writeReport(w io.Writer, d *analytics.Dashboard) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

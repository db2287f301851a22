package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"habitforge/pkg/outbox"
)

func newOutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and repair the transactional outbox",
	}
	cmd.AddCommand(newOutboxReplayCmd())
	return cmd
}

func newOutboxReplayCmd() *cobra.Command {
	var (
		eventID int64
		failed  bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Queue failed outbox events for another dispatch attempt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (eventID > 0) == failed {
				return fmt.Errorf("exactly one of --id or --failed is required")
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			replay := outbox.NewReplayService(outbox.NewRepository(e.pool), e.log)
			if eventID > 0 {
				if err := replay.ReplayEvent(ctx, eventID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "event %d queued\n", eventID)
				return nil
			}

			n, err := replay.ReplayFailedEvents(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d event(s) queued\n", n)
			return nil
		},
	}
	cmd.Flags().Int64Var(&eventID, "id", 0, "replay a single event")
	cmd.Flags().BoolVar(&failed, "failed", false, "replay every failed event")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum events replayed with --failed")
	return cmd
}

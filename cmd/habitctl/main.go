// Command habitctl runs administrative tasks against the habitforge database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"habitforge/internal/config"
	"habitforge/pkg/db"
	"habitforge/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "habitctl",
	Short:         "Administrative commands for habitforge",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(newMigrateCmd(), newReportCmd(), newOutboxCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env bundles what every subcommand needs. close must be called.
type env struct {
	cfg  *config.Config
	log  *zap.Logger
	pool *pgxpool.Pool
}

func (e *env) close() {
	e.pool.Close()
	_ = e.log.Sync()
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.NewLogger(cfg.Env)
	pool, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return &env{cfg: cfg, log: log, pool: pool}, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quillhq/quillfeed/internal/db"
	"github.com/quillhq/quillfeed/pkg/config"
	"github.com/quillhq/quillfeed/pkg/logging"
	"github.com/quillhq/quillfeed/pkg/telemetry"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:           "quillfeed-migrate",
		Short:         "Create or update the quillfeed database schema",
		Version:       telemetry.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Maximum time to spend migrating")

	return cmd
}

func migrate(ctx context.Context, timeout time.Duration) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting schema migration", zap.Duration("timeout", timeout))

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := database.Migrate(ctx); err != nil {
		return err
	}

	logger.Info("Schema migration complete")
	return nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/octobees/leads-enrichment/api/internal/config"
	"github.com/octobees/leads-enrichment/api/internal/database"
	"github.com/octobees/leads-enrichment/api/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log, err := logger.New(cfg.LogMode)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer log.Sync()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := database.MigrateUp(pool); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	},
}

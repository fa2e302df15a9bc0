package main

import (
	"github.com/spf13/cobra"

	"quorum/internal/platform/config"
	"quorum/internal/platform/logger"
	"quorum/internal/platform/postgres"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel, cfg.LogFormat)
			if !cfg.UsesPostgres() {
				log.Info("no database configured, nothing to migrate")
				return nil
			}

			ctx := cmd.Context()
			db, err := postgres.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(ctx, db)
			if err != nil {
				return err
			}
			log.Info("migrations applied", "count", len(applied), "names", applied)
			return nil
		},
	}
}

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"timetrack/internal/adapter/sqlstore"
	"timetrack/internal/migrate"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, cfg, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := migrate.Run(ctx, store.DB(), logger); err != nil {
				logger.Error("migration failed", slog.String("error", err.Error()))
				return err
			}
			logger.Info("migrations applied")
			return nil
		},
	}
}

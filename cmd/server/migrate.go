package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pat-settlement/internal/storage/migrations"
	pgstore "pat-settlement/internal/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply PostgreSQL and ClickHouse migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := cfg.Log.NewLogger(os.Stdout).With("component", "migrate")
		ctx := cmd.Context()

		if cfg.Storage.PostgresDSN == "" && !cfg.Analytics.Enabled {
			return fmt.Errorf("nothing to migrate: set storage.postgres_dsn or enable analytics")
		}

		if cfg.Storage.PostgresDSN != "" {
			pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN, poolOptions(cfg, logger)...)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				return err
			}
			logger.Info("postgres migrations applied")
		}

		if cfg.Analytics.Enabled {
			conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Analytics.ClickHouseDSN)
			if err != nil {
				return err
			}
			_ = conn.Close()
			logger.Info("clickhouse migrations applied")
		}
		return nil
	},
}

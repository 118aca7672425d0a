package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/ordermgr/internal/storage"
)

func newMigrateCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, *cfgFile)
			if err != nil {
				return err
			}

			db, err := storage.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := storage.ApplyMigrations(cmd.Context(), db); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
			v, err := storage.SchemaVersion(cmd.Context(), db)
			if err != nil {
				return err
			}
			logger.Info("migrations_applied", "schema_version", v)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, *cfgFile)
			if err != nil {
				return err
			}

			db, err := storage.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := storage.RollbackMigration(cmd.Context(), db); err != nil {
				return fmt.Errorf("failed to roll back migration: %w", err)
			}
			v, err := storage.SchemaVersion(cmd.Context(), db)
			if err != nil {
				return err
			}
			logger.Info("migration_rolled_back", "schema_version", v)
			return nil
		},
	})
	return cmd
}

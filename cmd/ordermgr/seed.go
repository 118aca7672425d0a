package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/ordermgr/internal/service"
	"github.com/dshills/ordermgr/internal/storage"
)

func newSeedCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample product catalog into an empty database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, *cfgFile)
			if err != nil {
				return err
			}

			store, err := storage.NewSQLiteStorage(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			n, err := service.NewCatalogService(store, logger).Seed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d products\n", n)
			return nil
		},
	}
}

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/ordermgr/internal/config"
	"github.com/dshills/ordermgr/internal/obs"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "ordermgr",
		Short: "Order management API",
		Long: `ordermgr serves a JSON API for a product catalog and customer orders,
backed by SQLite. Order totals are always recomputed from catalog prices.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	d := config.Defaults()
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ordermgr.yaml)")
	root.PersistentFlags().String("db-path", d.DBPath, "SQLite database file")
	root.PersistentFlags().String("log-level", d.LogLevel, "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(&cfgFile),
		newMigrateCmd(&cfgFile),
		newSeedCmd(&cfgFile),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves configuration for cmd and builds the stderr logger.
// stdout stays free for the MCP transport.
func loadConfig(cmd *cobra.Command, cfgFile string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	level, err := obs.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := obs.NewLogger(os.Stderr, level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

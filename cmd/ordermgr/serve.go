package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/ordermgr/internal/config"
	"github.com/dshills/ordermgr/internal/httpapi"
	"github.com/dshills/ordermgr/internal/mcp"
	"github.com/dshills/ordermgr/internal/obs"
	"github.com/dshills/ordermgr/internal/service"
	"github.com/dshills/ordermgr/internal/storage"
)

func newServeCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and optionally the MCP server on stdio)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, *cfgFile)
		},
	}

	d := config.Defaults()
	cmd.Flags().String("http-addr", d.HTTPAddr, "HTTP listen address")
	cmd.Flags().Duration("shutdown-timeout", d.ShutdownTimeout, "grace period for in-flight requests on shutdown")
	cmd.Flags().Bool("mcp", d.MCP, "also serve MCP tools on stdin/stdout")
	cmd.Flags().Bool("seed", d.Seed, "insert the sample catalog when no products exist")
	cmd.Flags().String("cors-origin", d.CORSOrigin, "Access-Control-Allow-Origin value; empty disables CORS")
	return cmd
}

func runServe(cmd *cobra.Command, cfgFile string) error {
	cfg, logger, err := loadConfig(cmd, cfgFile)
	if err != nil {
		return err
	}
	logger.Info("service_starting",
		"version", version,
		"build_mode", storage.BuildMode,
		"driver", storage.DriverName,
		"db_path", cfg.DBPath,
	)

	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(reg)

	catalog := service.NewCatalogService(store, logger)
	orders := service.NewOrderService(store, logger, metrics)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Seed {
		if _, err := catalog.Seed(ctx); err != nil {
			return err
		}
	}

	app := httpapi.NewApp(catalog, orders, store, httpapi.Options{
		Logger:     logger,
		Metrics:    metrics,
		CORSOrigin: cfg.CORSOrigin,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.MCP {
		g.Go(func() error {
			err := mcp.NewServer(catalog, orders, logger).Serve(gctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown_signal", "cause", context.Cause(gctx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http_shutdown_error", "error", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service_stopped", "error", err)
		return err
	}
	logger.Info("service_stopped")
	return nil
}

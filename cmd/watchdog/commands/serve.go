package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/platformbuilds/mirador-watchdog/internal/api"
	"github.com/platformbuilds/mirador-watchdog/internal/catalogue"
	"github.com/platformbuilds/mirador-watchdog/internal/evaluation"
	"github.com/platformbuilds/mirador-watchdog/internal/tracing"
	"github.com/platformbuilds/mirador-watchdog/pkg/cache"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the evaluation HTTP API",
	Long: `Serve the JSON evaluation API, readiness probes and Prometheus metrics.
The catalogue file is reloaded on change when catalogue.watch is set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override the configured HTTP port")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	log := newLogger(cfg)
	log.Info("Starting mirador-watchdog", "version", Version, "environment", cfg.Environment)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		tp, err := tracing.NewTracerProvider(ctx, cfg.Tracing.ServiceName, Version, cfg.Tracing.Endpoint)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Warn("Failed to flush traces", "error", err)
			}
		}()
		log.Info("Tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	cat, err := loadCatalogue(cfg)
	if err != nil {
		return err
	}
	store := catalogue.NewStore(cat)
	log.Info("Catalogue loaded", "path", cfg.Catalogue.Path, "nodes", cat.Len())

	if cfg.Catalogue.Watch && cfg.Catalogue.Path != "" {
		watcher := catalogue.NewWatcher(cfg.Catalogue.Path, store, log)
		go func() {
			if err := watcher.Start(ctx); err != nil {
				log.Warn("Catalogue watcher disabled", "error", err)
			}
		}()
	}

	resultCache := cache.New(cache.Options{
		Enabled:       cfg.Cache.Enabled,
		Nodes:         cfg.Cache.Nodes,
		Password:      cfg.Cache.Password,
		DB:            cfg.Cache.DB,
		TTL:           time.Duration(cfg.Cache.TTL) * time.Second,
		MemorySize:    cfg.Cache.MemorySize,
		RetryInterval: time.Duration(cfg.Cache.RetryInterval) * time.Second,
	}, log)
	if s, ok := resultCache.(interface{ Stop() }); ok {
		defer s.Stop()
	}

	engine, err := newEngine(cfg, store, log)
	if err != nil {
		return err
	}

	server := api.NewServer(cfg, log, api.Dependencies{
		Engine:     engine,
		Results:    evaluation.NewResultStore(resultCache, time.Duration(cfg.Evaluation.ResultTTL)*time.Second),
		Catalogues: store,
		Cache:      resultCache,
		Version:    Version,
	})
	if err := server.Start(ctx); err != nil {
		log.Error("Server stopped with error", "error", err)
		return err
	}

	log.Info("mirador-watchdog shutdown complete")
	return nil
}

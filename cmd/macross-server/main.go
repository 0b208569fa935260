package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"macross/internal/api"
	"macross/internal/config"
	"macross/internal/engine"
	"macross/internal/metrics"
	"macross/internal/store"
	"macross/internal/util"
)

func main() {
	cfgPath := "config/macross.yaml"
	if p := os.Getenv("MACROSS_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		log.Fatalf("creating sqlite dir: %v", err)
	}
	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening run store: %v", err)
	}
	defer runs.Close()

	eng := engine.NewEngine(
		store.NewParquetStore(cfg.Storage.DataDir),
		runs,
		cfg.Optimize.Workers,
		engine.NewLimits(cfg.Limits.MaxTrials, cfg.Limits.MaxWindow),
		logger,
	)

	if cfg.Metrics.Addr != "" {
		msrv := metrics.Serve(cfg.Metrics.Addr)
		defer msrv.Close()
		slog.Info("metrics listening", "addr", cfg.Metrics.Addr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("macross-server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "grpcPort", cfg.Server.GRPCPort)
	if err := api.NewServer(cfg, eng, logger).ListenAndServe(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/ledger-analytics/internal/app"
	"github.com/dvloznov/ledger-analytics/internal/config"
	"github.com/dvloznov/ledger-analytics/internal/jobs"
	"github.com/dvloznov/ledger-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/ledger-analytics/internal/logger"
)

// The worker runs scheduled loads without serving the API, so the sinks
// (BigQuery, Postgres, the snapshot cache) stay current on their own.
func main() {
	interval := flag.String("interval", "", "Refresh interval, e.g. 6h (or set REFRESH_INTERVAL env; default 1h)")
	manifest := flag.String("manifest", "", "YAML manifest of extracts (or set LEDGER_MANIFEST env)")
	flag.Parse()

	cfg, err := config.LoadWith(map[string]string{
		"REFRESH_INTERVAL": *interval,
		"LEDGER_MANIFEST":  *manifest,
	})
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = time.Hour
	}

	log := logger.NewWithLevel(cfg.LogLevel)
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(4, 1, jobStore)

	log.Info().Dur("interval", cfg.RefreshInterval).Msg("Starting worker service")
	if err := jobQueue.Start(ctx, a.HandleRefresh); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}
	if err := jobQueue.PublishRefresh(ctx, &jobs.RefreshJob{Trigger: app.TriggerStartup}); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue initial refresh")
	}
	go app.Schedule(ctx, jobQueue, cfg.RefreshInterval)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Cancel context so an in-flight load stops
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}

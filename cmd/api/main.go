package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/ledger-analytics/internal/api/handlers"
	"github.com/dvloznov/ledger-analytics/internal/api/middleware"
	"github.com/dvloznov/ledger-analytics/internal/app"
	"github.com/dvloznov/ledger-analytics/internal/config"
	"github.com/dvloznov/ledger-analytics/internal/jobs"
	"github.com/dvloznov/ledger-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/ledger-analytics/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		port     = flag.String("port", "", "HTTP server port (or set PORT env)")
		manifest = flag.String("manifest", "", "YAML manifest of extracts (or set LEDGER_MANIFEST env)")
	)
	flag.Parse()

	cfg, err := config.LoadWith(map[string]string{"PORT": *port, "LEDGER_MANIFEST": *manifest})
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	// Serve the cached snapshot, if any, while the first load runs.
	if err := a.Loader.Restore(ctx, a.Holder); err != nil {
		log.Info().Err(err).Msg("Starting without a cached snapshot")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(16, 1, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Msg("Starting job worker")
	if err := jobQueue.Start(workerCtx, a.HandleRefresh); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}
	if err := jobQueue.PublishRefresh(ctx, &jobs.RefreshJob{Trigger: app.TriggerStartup}); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue initial refresh")
	}
	if cfg.RefreshInterval > 0 {
		log.Info().Dur("interval", cfg.RefreshInterval).Msg("Scheduling periodic refresh")
		go app.Schedule(workerCtx, jobQueue, cfg.RefreshInterval)
	}

	// Create router
	mux := http.NewServeMux()
	handlers.NewLedgerHandler(a.Holder, a.Table, cfg.Alerts, log).Register(mux)
	handlers.NewJobsHandler(jobStore, jobQueue, log).Register(mux)
	if a.Runs != nil {
		handlers.NewRunsHandler(a.Runs, log).Register(mux)
	}

	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Cancel worker context so an in-flight load stops, then wait for it
	cancelWorker()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

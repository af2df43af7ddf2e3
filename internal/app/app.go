// Package app wires configuration into a ready loader, its sinks and the
// snapshot holder shared by the API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/ledger-analytics/internal/config"
	"github.com/dvloznov/ledger-analytics/internal/infra/bigquery"
	"github.com/dvloznov/ledger-analytics/internal/infra/postgres"
	"github.com/dvloznov/ledger-analytics/internal/infra/sqlite"
	"github.com/dvloznov/ledger-analytics/internal/logger"
	"github.com/dvloznov/ledger-analytics/internal/pipeline"
	"github.com/dvloznov/ledger-analytics/internal/source"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
)

var (
	_ pipeline.SnapshotSink  = (*bigquery.Repository)(nil)
	_ pipeline.RunRecorder   = (*bigquery.Repository)(nil)
	_ pipeline.SnapshotSink  = (*postgres.Store)(nil)
	_ pipeline.SnapshotCache = (*sqlite.Cache)(nil)
)

// App holds everything a load needs.
type App struct {
	Config *config.Config
	Table  *taxonomy.Table
	Loader *pipeline.Loader
	Holder *store.Holder

	// Runs is set when BigQuery is configured.
	Runs *bigquery.Repository

	closers []func() error
}

// New builds the sources and optional sinks named by cfg. Resources opened
// before a failure are released.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	log := logger.FromContext(ctx)
	a := &App{Config: cfg, Holder: store.NewHolder()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.Table, err = cfg.Taxonomy(); err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	manifest, err := cfg.Manifest()
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	deps := source.Deps{HTTP: &http.Client{Timeout: source.DefaultHTTPTimeout}}
	if usesGCS(manifest) {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("app.New: storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		deps.Storage = client
	}

	sources, err := manifest.Build(deps)
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	opts := pipeline.Options{
		Table:       a.Table,
		Concurrency: cfg.FetchConcurrency,
		Retries:     cfg.FetchRetries,
	}

	if cfg.BQDataset != "" {
		repo, err := bigquery.NewRepository(ctx, cfg.GCPProject, cfg.BQDataset)
		if err != nil {
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.closers = append(a.closers, repo.Close)
		a.Runs = repo
		opts.Sinks = append(opts.Sinks, repo)
		opts.Recorder = repo
		log.Info().Str("dataset", cfg.BQDataset).Msg("BigQuery sink enabled")
	}

	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		opts.Sinks = append(opts.Sinks, pg)
		log.Info().Msg("Postgres sink enabled")
	}

	var cache pipeline.SnapshotCache
	if cfg.SnapshotCache != "" {
		c, err := sqlite.Open(cfg.SnapshotCache)
		if err != nil {
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.closers = append(a.closers, c.Close)
		cache = c
		log.Info().Str("path", cfg.SnapshotCache).Msg("Snapshot cache enabled")
	}

	a.Loader = pipeline.NewLoader(sources, opts, cfg.LoadTimeout, cache)
	return a, nil
}

// Close releases every client opened by New.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func usesGCS(m *source.Manifest) bool {
	for _, e := range m.Sources {
		if strings.HasPrefix(strings.TrimSpace(e.URI), "gs://") {
			return true
		}
	}
	return false
}

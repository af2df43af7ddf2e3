package main

import (
	"context"
	"flag"
	"os"

	"github.com/dvloznov/ledger-analytics/internal/infra/bigquery"
	"github.com/dvloznov/ledger-analytics/internal/logger"
	"github.com/joho/godotenv"
)

func main() {
	project := flag.String("project", "", "GCP project ID (or set GCP_PROJECT env)")
	dataset := flag.String("dataset", "", "BigQuery dataset ID (or set BQ_DATASET env)")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name recorded in schema_migrations")
	dir := flag.String("migrations", "", "Directory of migration files (default: embedded)")
	flag.Parse()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	// The migrator needs no sources, so it skips full config validation.
	_ = godotenv.Load()
	if *project == "" {
		*project = os.Getenv("GCP_PROJECT")
	}
	if *dataset == "" {
		*dataset = os.Getenv("BQ_DATASET")
	}
	if *project == "" || *dataset == "" {
		log.Fatal().Msg("GCP project and BigQuery dataset are required")
	}

	repo, err := bigquery.NewRepository(ctx, *project, *dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer repo.Close()

	fsys := bigquery.Migrations()
	if *dir != "" {
		fsys = os.DirFS(*dir)
	}

	applied, err := repo.Migrate(ctx, fsys, *appliedBy)
	if err != nil {
		log.Fatal().Err(err).Int("applied", applied).Msg("Migration failed")
	}
	if applied == 0 {
		log.Info().Msg("No new migrations to apply, dataset is up to date")
		return
	}
	log.Info().Int("applied", applied).Msg("Migrations applied")
}

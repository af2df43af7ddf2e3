package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/ledger-analytics/internal/logger"
	"github.com/dvloznov/ledger-analytics/internal/source"
)

func main() {
	log := logger.New()

	var (
		bucket      string
		prefix      string
		output      string
		concurrency int
	)
	flag.StringVar(&bucket, "bucket", "", "GCS bucket name (required)")
	flag.StringVar(&prefix, "prefix", "extracts", "Object name prefix")
	flag.StringVar(&output, "manifest", "", "Write the resulting manifest here (default: stdout)")
	flag.IntVar(&concurrency, "concurrency", 4, "Parallel uploads")
	flag.Parse()

	files := flag.Args()
	if bucket == "" || len(files) == 0 {
		log.Fatal().Msg("Usage: stage-extracts -bucket BUCKET [-prefix P] [-manifest out.yaml] FILE...")
	}

	ctx := logger.WithContext(context.Background(), log)

	client, err := storage.NewClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer client.Close()

	log.Info().Str("bucket", bucket).Str("prefix", prefix).Int("files", len(files)).Msg("Uploading extracts to GCS")

	m, err := source.Stage(ctx, client, bucket, prefix, files, concurrency)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	data, err := m.Marshal()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render manifest")
	}
	if output == "" {
		fmt.Print(string(data))
		return
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		log.Fatal().Err(err).Msg("Failed to write manifest")
	}
	log.Info().Str("manifest", output).Msg("Manifest written")
}

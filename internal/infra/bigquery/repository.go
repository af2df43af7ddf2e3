package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/ledger-analytics/internal/store"
)

// Repository publishes snapshots to BigQuery and records load runs there.
// It holds a shared client to avoid creating a connection per operation.
type Repository struct {
	client  *bigquery.Client
	dataset string
}

// NewRepository creates a Repository with a client for project.
func NewRepository(ctx context.Context, project, dataset string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, dataset: dataset}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Name identifies the sink in coverage reports.
func (r *Repository) Name() string { return "bigquery" }

// Publish streams every record of snap into ledger_records.
func (r *Repository) Publish(ctx context.Context, snap *store.Snapshot) error {
	return InsertLedgerRecordsWithClient(ctx, r.client, r.dataset, RecordRows(snap))
}

// StartRun delegates to StartLoadRunWithClient with the shared client.
func (r *Repository) StartRun(ctx context.Context, loadID string, sources int) error {
	return StartLoadRunWithClient(ctx, r.client, r.dataset, loadID, sources)
}

// MarkRunSucceeded delegates to MarkLoadRunSucceededWithClient with the shared client.
func (r *Repository) MarkRunSucceeded(ctx context.Context, loadID string, meta store.Meta, records int) error {
	return MarkLoadRunSucceededWithClient(ctx, r.client, r.dataset, loadID, meta, records)
}

// MarkRunFailed delegates to MarkLoadRunFailedWithClient with the shared client.
func (r *Repository) MarkRunFailed(ctx context.Context, loadID string, runErr error) {
	MarkLoadRunFailedWithClient(ctx, r.client, r.dataset, loadID, runErr)
}

// ListLoadRuns delegates to ListLoadRunsWithClient with the shared client.
func (r *Repository) ListLoadRuns(ctx context.Context, limit int) ([]*LoadRunRow, error) {
	return ListLoadRunsWithClient(ctx, r.client, r.dataset, limit)
}

package pipeline

import (
	"context"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/store"
)

// SnapshotSink receives every successfully built snapshot. Sinks are
// optional; a failing sink never fails the load.
type SnapshotSink interface {
	Name() string
	Publish(ctx context.Context, snap *store.Snapshot) error
}

// SnapshotCache is a sink that can also hand back the last snapshot it
// stored, so a cold start can serve data before any extract is fetched.
type SnapshotCache interface {
	SnapshotSink
	Load(ctx context.Context) ([]ledger.Record, store.Meta, error)
}

// RunRecorder tracks the lifecycle of load runs.
type RunRecorder interface {
	StartRun(ctx context.Context, loadID string, sources int) error
	MarkRunSucceeded(ctx context.Context, loadID string, meta store.Meta, records int) error
	MarkRunFailed(ctx context.Context, loadID string, runErr error)
}

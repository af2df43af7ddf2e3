package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/ledger-analytics/internal/extract"
	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/logger"
	"github.com/dvloznov/ledger-analytics/internal/normalize"
	"github.com/dvloznov/ledger-analytics/internal/source"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Defaults for FetchExtractsStep.
const (
	DefaultConcurrency = 4
	DefaultBackoff     = time.Second
)

// Step 1: StartRunStep assigns a load id and records the run start.
type StartRunStep struct {
	Recorder RunRecorder
}

func (s *StartRunStep) Execute(ctx context.Context, state *State) error {
	if state.LoadID == "" {
		state.LoadID = uuid.NewString()
	}
	if state.StartedAt.IsZero() {
		state.StartedAt = time.Now()
	}
	if len(state.Sources) == 0 {
		return fmt.Errorf("StartRun: no sources configured: %w", ledger.ErrNoData)
	}

	if s.Recorder != nil {
		if err := s.Recorder.StartRun(ctx, state.LoadID, len(state.Sources)); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("load_id", state.LoadID).Msg("Failed to record run start")
		}
	}
	return nil
}

// Step 2: FetchExtractsStep downloads every source concurrently. A source
// that keeps failing after its retries is recorded in the coverage report
// and skipped; only a load where every source failed is an error.
type FetchExtractsStep struct {
	Concurrency int
	Retries     int
	Backoff     time.Duration
}

func (s *FetchExtractsStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)

	limit := s.Concurrency
	if limit < 1 {
		limit = DefaultConcurrency
	}

	n := len(state.Sources)
	payloads := make([][]byte, n)
	coverage := make([]store.SourceStatus, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, src := range state.Sources {
		g.Go(func() error {
			data, err := s.fetch(gctx, src)
			coverage[i] = store.SourceStatus{Name: src.Name(), OK: err == nil}
			if err != nil {
				coverage[i].Error = err.Error()
				log.Warn().Err(err).Str("source", src.Name()).Msg("Extract unavailable, continuing with reduced coverage")
				return nil
			}
			payloads[i] = data
			return nil
		})
	}
	// Workers never return errors; failures live in coverage.
	_ = g.Wait()

	state.Coverage = coverage
	state.Extracts = state.Extracts[:0]
	for i, data := range payloads {
		if coverage[i].OK {
			state.Extracts = append(state.Extracts, Extract{Name: coverage[i].Name, Data: data, Source: i})
		}
	}

	if len(state.Extracts) == 0 {
		return fmt.Errorf("FetchExtracts: all %d sources failed: %w", n, ledger.ErrNoData)
	}
	log.Info().Int("loaded", len(state.Extracts)).Int("total", n).Msg("Extracts fetched")
	return nil
}

// fetch tries a source up to Retries+1 times with linear backoff.
func (s *FetchExtractsStep) fetch(ctx context.Context, src source.Source) ([]byte, error) {
	backoff := s.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	var lastErr error
	for attempt := 0; attempt <= s.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch %s: %w (last error: %v)", src.Name(), ctx.Err(), lastErr)
			}
		}
		data, err := src.Fetch(ctx)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch %s: %d attempts: %w", src.Name(), s.Retries+1, lastErr)
}

// Step 3: ParseExtractsStep turns every extract into ledger records.
type ParseExtractsStep struct{}

func (s *ParseExtractsStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)

	state.Records = state.Records[:0]
	state.ParseStats = extract.Stats{}
	for _, ex := range state.Extracts {
		records, stats := extract.Parse(ex.Data)
		state.ParseStats.Add(stats)
		state.Records = append(state.Records, records...)

		if ex.Source >= 0 && ex.Source < len(state.Coverage) {
			state.Coverage[ex.Source].Records = len(records)
		}
		if stats.Skipped() > 0 || stats.ZeroedAmounts > 0 {
			log.Warn().
				Str("source", ex.Name).
				Int("skipped", stats.Skipped()).
				Int("zeroed_amounts", stats.ZeroedAmounts).
				Msg("Extract had malformed lines")
		}
	}

	if len(state.Records) == 0 {
		return fmt.Errorf("ParseExtracts: no valid records in %d extracts: %w", len(state.Extracts), ledger.ErrNoData)
	}
	return nil
}

// Step 4: NormalizeStep reconciles names and drops duplicates.
type NormalizeStep struct{}

func (s *NormalizeStep) Execute(ctx context.Context, state *State) error {
	records, ids, report := normalize.Normalize(state.Records)
	state.Records = records
	state.Identity = ids
	state.Normalization = report

	log := logger.FromContext(ctx)
	log.Info().
		Int("input", report.Input).
		Int("output", report.Output).
		Int("duplicates", report.Duplicates).
		Int("key_collisions", report.KeyCollisions).
		Msg("Records normalized")
	return nil
}

// Step 5: BuildSnapshotStep classifies and indexes the records.
type BuildSnapshotStep struct {
	Table *taxonomy.Table
}

func (s *BuildSnapshotStep) Execute(ctx context.Context, state *State) error {
	table := s.Table
	if table == nil {
		table = taxonomy.Default()
	}

	snap, err := store.Build(state.Records, table, store.Meta{
		LoadID:       state.LoadID,
		BuiltAt:      time.Now(),
		TableVersion: table.Version,
		Sources:      append([]store.SourceStatus(nil), state.Coverage...),
	})
	if err != nil {
		return fmt.Errorf("BuildSnapshot: %w", err)
	}
	state.Snapshot = snap
	return nil
}

// Step 6: PublishStep hands the snapshot to every sink. Sink failures are
// logged and recorded; they do not fail the load.
type PublishStep struct {
	Sinks []SnapshotSink
}

func (s *PublishStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)
	for _, sink := range s.Sinks {
		if err := sink.Publish(ctx, state.Snapshot); err != nil {
			log.Error().Err(err).Str("sink", sink.Name()).Msg("Failed to publish snapshot")
			state.SinkErrors = append(state.SinkErrors, SinkError{Sink: sink.Name(), Error: err.Error()})
			continue
		}
		log.Debug().Str("sink", sink.Name()).Msg("Snapshot published")
	}
	return nil
}

// Step 7: FinishRunStep marks the run as SUCCESS. A recorder that is also
// a sink and failed to publish marks the run FAILED instead, so its table
// never points readers at a load it did not store.
type FinishRunStep struct {
	Recorder RunRecorder
}

func (s *FinishRunStep) Execute(ctx context.Context, state *State) error {
	if s.Recorder == nil || state.Snapshot == nil {
		return nil
	}
	log := logger.FromContext(ctx)

	if sinkErr := recorderSinkError(s.Recorder, state.SinkErrors); sinkErr != nil {
		s.Recorder.MarkRunFailed(ctx, state.LoadID, sinkErr)
		log.Warn().Err(sinkErr).Str("load_id", state.LoadID).Msg("Run recorded as failed after publish error")
		return nil
	}

	if err := s.Recorder.MarkRunSucceeded(ctx, state.LoadID, state.Snapshot.Meta(), state.Snapshot.Len()); err != nil {
		log.Warn().Err(err).Str("load_id", state.LoadID).Msg("Failed to record run success")
	}
	return nil
}

// recorderSinkError returns the publish error of rec when rec is one of the
// sinks that failed.
func recorderSinkError(rec RunRecorder, sinkErrors []SinkError) error {
	sink, ok := rec.(SnapshotSink)
	if !ok {
		return nil
	}
	for _, se := range sinkErrors {
		if se.Sink == sink.Name() {
			return fmt.Errorf("publish to %s: %s", se.Sink, se.Error)
		}
	}
	return nil
}

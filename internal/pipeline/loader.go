package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/ledger-analytics/internal/logger"
	"github.com/dvloznov/ledger-analytics/internal/normalize"
	"github.com/dvloznov/ledger-analytics/internal/source"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a whole load when none is configured.
const DefaultTimeout = 5 * time.Minute

// ErrLoadInProgress is returned when a refresh is requested while another
// one is running.
var ErrLoadInProgress = errors.New("load already in progress")

// Loader runs full loads and publishes their snapshots to a holder.
type Loader struct {
	sources []source.Source
	opts    Options
	timeout time.Duration
	cache   SnapshotCache

	mu sync.Mutex
}

// NewLoader creates a loader over sources. A non-nil cache is also used as
// a sink so every good snapshot is saved for the next cold start.
func NewLoader(sources []source.Source, opts Options, timeout time.Duration, cache SnapshotCache) *Loader {
	if opts.Table == nil {
		opts.Table = taxonomy.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if cache != nil {
		opts.Sinks = append(append([]SnapshotSink(nil), opts.Sinks...), cache)
	}
	return &Loader{sources: sources, opts: opts, timeout: timeout, cache: cache}
}

// Table returns the classification table the loader builds with.
func (l *Loader) Table() *taxonomy.Table {
	return l.opts.Table
}

// Load runs the pipeline once under the overall timeout. It never touches
// a holder; on failure the returned state still carries the coverage report.
func (l *Loader) Load(ctx context.Context) (*State, error) {
	if !l.mu.TryLock() {
		return nil, ErrLoadInProgress
	}
	defer l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	state := &State{Sources: l.sources, LoadID: uuid.NewString()}
	log := logger.ForLoad(logger.FromContext(ctx), state.LoadID)
	ctx = logger.WithContext(ctx, log)

	err := NewLoadPipeline(l.opts).Execute(ctx, state)
	if err != nil {
		if l.opts.Recorder != nil && state.LoadID != "" {
			// The load context may be spent; record the failure on a fresh one.
			rctx, rcancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			l.opts.Recorder.MarkRunFailed(rctx, state.LoadID, err)
			rcancel()
		}
		log.Error().Err(err).Msg("Load failed")
		return state, fmt.Errorf("Loader.Load: %w", err)
	}

	log.Info().
		Int("records", state.Snapshot.Len()).
		Int("sources_loaded", state.Loaded()).
		Int("sources_total", len(state.Sources)).
		Dur("took", time.Since(state.StartedAt)).
		Msg("Load complete")
	return state, nil
}

// Refresh loads and swaps the new snapshot into h. On failure h keeps its
// current snapshot; if it has none yet and a cache is configured, the cached
// snapshot is restored instead.
func (l *Loader) Refresh(ctx context.Context, h *store.Holder) (*State, error) {
	state, err := l.Load(ctx)
	if err != nil {
		if h.Current() == nil && l.cache != nil && !errors.Is(err, ErrLoadInProgress) {
			if rerr := l.Restore(ctx, h); rerr != nil {
				log := logger.FromContext(ctx)
				log.Warn().Err(rerr).Msg("No cached snapshot to fall back to")
			}
		}
		return state, err
	}
	h.Swap(state.Snapshot)
	return state, nil
}

// Restore rebuilds the cached snapshot into h.
func (l *Loader) Restore(ctx context.Context, h *store.Holder) error {
	if l.cache == nil {
		return fmt.Errorf("Loader.Restore: no cache configured")
	}
	records, meta, err := l.cache.Load(ctx)
	if err != nil {
		return fmt.Errorf("Loader.Restore: %w", err)
	}
	// Cached rows are already normalized; normalizing again is a no-op
	// that re-establishes the key invariant if the cache was edited.
	records, _, _ = normalize.Normalize(records)
	snap, err := store.Build(records, l.opts.Table, meta)
	if err != nil {
		return fmt.Errorf("Loader.Restore: %w", err)
	}
	h.Swap(snap)

	log := logger.FromContext(ctx)
	log.Info().Str("load_id", meta.LoadID).Int("records", snap.Len()).Msg("Restored cached snapshot")
	return nil
}

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/ledger-analytics/internal/extract"
	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/normalize"
	"github.com/dvloznov/ledger-analytics/internal/source"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
)

// Step represents a single step in the load pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// Extract is the raw payload of one fetched source.
type Extract struct {
	Name string
	Data []byte
	// Source is the index of the source in State.Sources.
	Source int
}

// SinkError records a sink that failed to publish.
type SinkError struct {
	Sink  string `json:"sink"`
	Error string `json:"error"`
}

// State holds the shared state across all pipeline steps.
type State struct {
	LoadID    string
	StartedAt time.Time
	Sources   []source.Source

	Extracts []Extract
	// Coverage has one entry per source, in source order.
	Coverage []store.SourceStatus

	Records       []ledger.Record
	ParseStats    extract.Stats
	Identity      normalize.IdentityMap
	Normalization normalize.Report

	Snapshot   *store.Snapshot
	SinkErrors []SinkError
}

// Loaded returns the number of sources that were fetched.
func (s *State) Loaded() int {
	n := 0
	for _, c := range s.Coverage {
		if c.OK {
			n++
		}
	}
	return n
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Options configures the standard load pipeline.
type Options struct {
	Table       *taxonomy.Table
	Concurrency int
	Retries     int
	Backoff     time.Duration
	Sinks       []SnapshotSink
	Recorder    RunRecorder
}

// NewLoadPipeline creates the standard pipeline: fetch, parse, normalize,
// classify into a snapshot, publish.
func NewLoadPipeline(opts Options) *Pipeline {
	return NewPipeline(
		&StartRunStep{Recorder: opts.Recorder},
		&FetchExtractsStep{Concurrency: opts.Concurrency, Retries: opts.Retries, Backoff: opts.Backoff},
		&ParseExtractsStep{},
		&NormalizeStep{},
		&BuildSnapshotStep{Table: opts.Table},
		&PublishStep{Sinks: opts.Sinks},
		&FinishRunStep{Recorder: opts.Recorder},
	)
}

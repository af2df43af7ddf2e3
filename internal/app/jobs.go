package app

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/ledger-analytics/internal/jobs"
	"github.com/dvloznov/ledger-analytics/internal/logger"
	"github.com/dvloznov/ledger-analytics/internal/pipeline"
)

// Refresh triggers.
const (
	TriggerAPI      = "api"
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
)

// HandleRefresh is a jobs.JobHandler that reloads every source into the
// holder and fills the job's result fields. A refresh that finds another
// load running is not an error; retrying it would only queue a duplicate.
func (a *App) HandleRefresh(ctx context.Context, job *jobs.RefreshJob) error {
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Str("trigger", job.Trigger).Logger()
	log.Info().Msg("Processing refresh job")

	state, err := a.Loader.Refresh(logger.WithContext(ctx, log), a.Holder)
	if state != nil {
		job.LoadID = state.LoadID
		job.Sources = len(state.Sources)
		job.FailedSources = nil
		for _, c := range state.Coverage {
			if !c.OK {
				job.FailedSources = append(job.FailedSources, c.Name)
			}
		}
		if state.Snapshot != nil {
			job.Records = state.Snapshot.Len()
		}
	}
	if errors.Is(err, pipeline.ErrLoadInProgress) {
		log.Info().Msg("Refresh skipped, another load is running")
		return nil
	}
	if err != nil {
		log.Error().Err(err).Msg("Refresh failed")
		return err
	}

	log.Info().Int("records", job.Records).Int("failed_sources", len(job.FailedSources)).Msg("Refresh completed")
	return nil
}

// Schedule publishes a refresh job every interval until ctx is done.
func Schedule(ctx context.Context, pub jobs.Publisher, every time.Duration) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pub.PublishRefresh(ctx, &jobs.RefreshJob{Trigger: TriggerSchedule}); err != nil {
				log.Error().Err(err).Msg("Failed to enqueue scheduled refresh")
			}
		}
	}
}

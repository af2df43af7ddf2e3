package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/ledger-analytics/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.RefreshJob {
	t.Helper()
	var got *jobs.RefreshJob
	require.Eventually(t, func() bool {
		job, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		got = job
		return job.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestQueue_PublishAndConsume(t *testing.T) {
	store := NewStore()
	queue := NewQueue(4, 1, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, queue.Start(ctx, func(ctx context.Context, job *jobs.RefreshJob) error {
		job.LoadID = "load-1"
		job.Records = 42
		return nil
	}))

	job := &jobs.RefreshJob{Trigger: "api"}
	require.NoError(t, queue.PublishRefresh(ctx, job))
	require.NotEmpty(t, job.JobID)
	assert.Equal(t, DefaultMaxRetries, job.MaxRetries)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, "load-1", done.LoadID)
	assert.Equal(t, 42, done.Records)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)

	require.NoError(t, queue.Stop(context.Background()))
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	store := NewStore()
	queue := NewQueue(4, 1, store)
	queue.SetBackoff(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	require.NoError(t, queue.Start(ctx, func(ctx context.Context, job *jobs.RefreshJob) error {
		if calls.Add(1) < 3 {
			return errors.New("sources unreachable")
		}
		return nil
	}))

	job := &jobs.RefreshJob{Trigger: "startup"}
	require.NoError(t, queue.PublishRefresh(ctx, job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 2, done.RetryCount)
	assert.Empty(t, done.Error)
	assert.Equal(t, int32(3), calls.Load())

	require.NoError(t, queue.Stop(context.Background()))
}

func TestQueue_GivesUpAfterMaxRetries(t *testing.T) {
	store := NewStore()
	queue := NewQueue(4, 1, store)
	queue.SetBackoff(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, queue.Start(ctx, func(ctx context.Context, job *jobs.RefreshJob) error {
		return errors.New("no data")
	}))

	job := &jobs.RefreshJob{Trigger: "api", MaxRetries: 1}
	require.NoError(t, queue.PublishRefresh(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, 1, failed.RetryCount)
	assert.Equal(t, "no data", failed.Error)

	require.NoError(t, queue.Stop(context.Background()))
}

func TestQueue_PublishAfterStop(t *testing.T) {
	queue := NewQueue(1, 1, nil)
	require.NoError(t, queue.Stop(context.Background()))
	require.NoError(t, queue.Close(), "stopping twice is a no-op")

	err := queue.PublishRefresh(context.Background(), &jobs.RefreshJob{})
	assert.Error(t, err)
	assert.Error(t, queue.Start(context.Background(), func(ctx context.Context, job *jobs.RefreshJob) error { return nil }))
}

func TestQueue_PublishHonoursContext(t *testing.T) {
	queue := NewQueue(0, 1, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := queue.PublishRefresh(ctx, &jobs.RefreshJob{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

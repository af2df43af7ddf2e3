package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/ledger-analytics/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	job := &jobs.RefreshJob{JobID: "a", Trigger: "api", Status: jobs.JobStatusPending, FailedSources: []string{"x"}}
	require.NoError(t, store.SaveJob(ctx, job))

	job.Status = jobs.JobStatusRunning
	job.FailedSources[0] = "y"

	got, err := store.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, got.Status, "store keeps its own copy")
	assert.Equal(t, []string{"x"}, got.FailedSources)
}

func TestStore_SaveRequiresID(t *testing.T) {
	assert.Error(t, NewStore().SaveJob(context.Background(), &jobs.RefreshJob{}))
}

func TestStore_GetUnknown(t *testing.T) {
	_, err := NewStore().GetJob(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, jobs.ErrJobNotFound))
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, j := range []*jobs.RefreshJob{
		{JobID: "1", Trigger: "startup", Status: jobs.JobStatusCompleted},
		{JobID: "2", Trigger: "api", Status: jobs.JobStatusFailed},
		{JobID: "3", Trigger: "api", Status: jobs.JobStatusCompleted},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveJob(ctx, j))
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{name: "all newest first", want: []string{"3", "2", "1"}},
		{name: "by trigger", filter: jobs.JobFilter{Trigger: "api"}, want: []string{"3", "2"}},
		{name: "by status", filter: jobs.JobFilter{Status: jobs.JobStatusCompleted}, want: []string{"3", "1"}},
		{name: "limit", filter: jobs.JobFilter{Limit: 1}, want: []string{"3"}},
		{name: "offset", filter: jobs.JobFilter{Offset: 1, Limit: 5}, want: []string{"2", "1"}},
		{name: "offset past end", filter: jobs.JobFilter{Offset: 9}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			ids := []string{}
			for _, j := range got {
				ids = append(ids, j.JobID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.SaveJob(ctx, &jobs.RefreshJob{JobID: "a", Status: jobs.JobStatusRunning}))

	require.NoError(t, store.UpdateJobStatus(ctx, "a", jobs.JobStatusFailed, "boom"))
	got, err := store.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	err = store.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, "")
	assert.True(t, errors.Is(err, jobs.ErrJobNotFound))
}

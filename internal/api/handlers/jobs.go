package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dvloznov/ledger-analytics/internal/api/middleware"
	"github.com/dvloznov/ledger-analytics/internal/infra/bigquery"
	"github.com/dvloznov/ledger-analytics/internal/jobs"
	"github.com/rs/zerolog"
)

// JobsHandler handles refresh and job-related endpoints.
type JobsHandler struct {
	store     jobs.JobStore
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, publisher jobs.Publisher, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store:     store,
		publisher: publisher,
		log:       log,
	}
}

// Register adds the job routes to mux.
func (h *JobsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/refresh", h.EnqueueRefresh)
	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
}

// EnqueueRefresh handles POST /api/refresh
func (h *JobsHandler) EnqueueRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	job := &jobs.RefreshJob{Trigger: "api"}
	if err := h.publisher.PublishRefresh(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue refresh job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue refresh job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Msg("Refresh job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Trigger: query.Get("trigger"),
		Status:  jobs.JobStatus(query.Get("status")),
		Limit:   intParam(query, "limit", 0),
		Offset:  intParam(query, "offset", 0),
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// RunLister reads the load run history.
type RunLister interface {
	ListLoadRuns(ctx context.Context, limit int) ([]*bigquery.LoadRunRow, error)
}

// RunsHandler serves the load run history.
type RunsHandler struct {
	runs RunLister
	log  zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(runs RunLister, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{runs: runs, log: log}
}

// Register adds the run routes to mux.
func (h *RunsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/runs", h.ListRuns)
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.ListLoadRuns(r.Context(), intParam(r.URL.Query(), "limit", 20))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list load runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list load runs")
		return
	}
	if runs == nil {
		runs = []*bigquery.LoadRunRow{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

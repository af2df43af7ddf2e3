package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Load run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

type LoadRunRow struct {
	LoadID string `bigquery:"load_id" json:"load_id"` // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts" json:"started_ts"`   // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts" json:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status" json:"status"`               // REQUIRED
	ErrorMessage string `bigquery:"error_message" json:"error_message"` // NULLABLE

	SourcesTotal  int64              `bigquery:"sources_total" json:"sources_total"`   // REQUIRED
	SourcesLoaded bigquery.NullInt64 `bigquery:"sources_loaded" json:"sources_loaded"` // NULLABLE
	Records       bigquery.NullInt64 `bigquery:"records" json:"records"`               // NULLABLE

	TableVersion bigquery.NullString `bigquery:"table_version" json:"table_version"` // NULLABLE
}

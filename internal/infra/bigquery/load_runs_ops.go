package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/ledger-analytics/internal/logger"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"google.golang.org/api/iterator"
)

const (
	loadRunsTable = "load_runs"

	maxErrorLen = 2000
)

// StartLoadRunWithClient inserts a new row into <dataset>.load_runs with
// status=RUNNING using the provided BigQuery client.
func StartLoadRunWithClient(ctx context.Context, client *bigquery.Client, dataset, loadID string, sources int) error {
	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			load_id,
			started_ts,
			status,
			sources_total
		)
		VALUES (
			@load_id,
			@started_ts,
			@status,
			@sources_total
		)
	`, dataset, loadRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "load_id", Value: loadID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: RunStatusRunning},
		{Name: "sources_total", Value: int64(sources)},
	}

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("StartLoadRun: %w", err)
	}
	return nil
}

// MarkLoadRunSucceededWithClient sets status=SUCCESS, finished_ts and the load
// counters, and clears error_message.
func MarkLoadRunSucceededWithClient(ctx context.Context, client *bigquery.Client, dataset, loadID string, meta store.Meta, records int) error {
	loaded, _ := meta.Coverage()

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = "",
		    sources_loaded = @sources_loaded,
		    records = @records,
		    table_version = @table_version
		WHERE load_id = @load_id
	`, dataset, loadRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "sources_loaded", Value: int64(loaded)},
		{Name: "records", Value: int64(records)},
		{Name: "table_version", Value: meta.TableVersion},
		{Name: "load_id", Value: loadID},
	}

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("MarkLoadRunSucceeded: %w", err)
	}
	return nil
}

// MarkLoadRunFailedWithClient sets status=FAILED, finished_ts and
// error_message. Failures are logged, not returned.
func MarkLoadRunFailedWithClient(ctx context.Context, client *bigquery.Client, dataset, loadID string, runErr error) {
	log := logger.FromContext(ctx)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE load_id = @load_id
	`, dataset, loadRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: truncateError(runErr)},
		{Name: "load_id", Value: loadID},
	}

	if err := runAndWait(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("load_id", loadID).
			Msg("MarkLoadRunFailed: update failed")
	}
}

// ListLoadRunsWithClient returns the most recent load runs, newest first.
func ListLoadRunsWithClient(ctx context.Context, client *bigquery.Client, dataset string, limit int) ([]*LoadRunRow, error) {
	if limit <= 0 {
		limit = 20
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			load_id,
			started_ts,
			finished_ts,
			status,
			IFNULL(error_message, "") AS error_message,
			sources_total,
			sources_loaded,
			records,
			table_version
		FROM %s.%s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, dataset, loadRunsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListLoadRuns: query read: %w", err)
	}

	var rows []*LoadRunRow
	for {
		var r LoadRunRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListLoadRuns: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

func runAndWait(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return msg
}

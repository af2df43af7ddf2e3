package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	ledgerRecordsTable = "ledger_records"

	// insertBatchSize keeps each streaming request well under the API limits.
	insertBatchSize = 500
)

// InsertLedgerRecordsWithClient streams rows into <dataset>.ledger_records
// using the provided BigQuery client.
func InsertLedgerRecordsWithClient(ctx context.Context, client *bigquery.Client, dataset string, rows []*LedgerRecordRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(dataset).Table(ledgerRecordsTable).Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("InsertLedgerRecords: inserting rows %d-%d: %w", start, end, err)
		}
	}

	return nil
}

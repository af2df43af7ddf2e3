package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-analytics/internal/store"
)

// LedgerRecordRow is one normalized ledger line in ledger_records.
type LedgerRecordRow struct {
	LoadID string `bigquery:"load_id"` // REQUIRED

	EntityID   string `bigquery:"entity_id"`   // REQUIRED
	EntityName string `bigquery:"entity_name"` // REQUIRED

	Period    string     `bigquery:"period"`     // REQUIRED, YYYYMM
	PeriodEnd civil.Date `bigquery:"period_end"` // REQUIRED

	AccountCode  string              `bigquery:"account_code"`  // REQUIRED
	AccountLabel bigquery.NullString `bigquery:"account_label"` // NULLABLE

	Debit  *big.Rat `bigquery:"debit"`  // REQUIRED NUMERIC
	Credit *big.Rat `bigquery:"credit"` // REQUIRED NUMERIC

	BalanceClass string `bigquery:"balance_class"` // REQUIRED
	RollupLevel  string `bigquery:"rollup_level"`  // REQUIRED
	Category     string `bigquery:"category"`      // REQUIRED
	ViewTag      string `bigquery:"view_tag"`      // REQUIRED

	LoadedTS time.Time `bigquery:"loaded_ts"` // REQUIRED
}

// RecordRows converts every record of snap into insertable rows.
func RecordRows(snap *store.Snapshot) []*LedgerRecordRow {
	meta := snap.Meta()
	loaded := meta.BuiltAt
	if loaded.IsZero() {
		loaded = time.Now()
	}

	records := snap.All()
	rows := make([]*LedgerRecordRow, 0, len(records))
	for _, r := range records {
		tags, _ := snap.Tags(r.AccountCode)
		rows = append(rows, &LedgerRecordRow{
			LoadID:       meta.LoadID,
			EntityID:     r.EntityID,
			EntityName:   r.EntityName,
			Period:       r.Period.Key(),
			PeriodEnd:    r.Period.EndDate(),
			AccountCode:  r.AccountCode,
			AccountLabel: bigquery.NullString{StringVal: r.AccountLabel, Valid: r.AccountLabel != ""},
			Debit:        r.Debit.Rat(),
			Credit:       r.Credit.Rat(),
			BalanceClass: string(tags.BalanceClass),
			RollupLevel:  string(tags.RollupLevel),
			Category:     tags.Category,
			ViewTag:      string(tags.ViewTag),
			LoadedTS:     loaded,
		})
	}
	return rows
}

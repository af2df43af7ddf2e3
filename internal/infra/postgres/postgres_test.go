package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(t *testing.T, loadID string, debit string) *store.Snapshot {
	t.Helper()
	snap, err := store.Build([]ledger.Record{
		{
			EntityID:     "007",
			EntityName:   "Banco A",
			Period:       ledger.MustParsePeriod("202401"),
			AccountCode:  "110000",
			AccountLabel: "Disponibilidades",
			Debit:        decimal.RequireFromString(debit),
			Credit:       decimal.Zero,
		},
		{
			EntityID:    "011",
			EntityName:  "Banco B",
			Period:      ledger.MustParsePeriod("202401"),
			AccountCode: "311000",
			Debit:       decimal.Zero,
			Credit:      decimal.NewFromInt(250),
		},
	}, taxonomy.Default(), store.Meta{LoadID: loadID, BuiltAt: time.Now()})
	require.NoError(t, err)
	return snap
}

func TestCopyRows(t *testing.T) {
	rows := copyRows(testSnapshot(t, "l1", "1234.56"))
	require.Len(t, rows, 2)
	require.Len(t, rows[0], len(columns))

	assert.Equal(t, "007", rows[0][0])
	assert.Equal(t, "202401", rows[0][2])
	date := rows[0][3].(pgtype.Date)
	assert.Equal(t, 31, date.Time.Day())

	debit := rows[0][6].(pgtype.Numeric)
	assert.Equal(t, int64(123456), debit.Int.Int64())
	assert.Equal(t, int32(-2), debit.Exp)
	assert.Equal(t, "Cash and bank deposits", rows[0][8])
}

func TestStore_Publish(t *testing.T) {
	url := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	s, err := Open(ctx, url)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Publish(ctx, testSnapshot(t, "l1", "100")))
	require.NoError(t, s.Publish(ctx, testSnapshot(t, "l2", "200")))

	var count int
	require.NoError(t, s.Pool.QueryRow(ctx, `SELECT count(*) FROM ledger_records`).Scan(&count))
	assert.Equal(t, 2, count, "second publish replaces the first")

	var debit string
	require.NoError(t, s.Pool.QueryRow(ctx,
		`SELECT debit::text FROM ledger_records WHERE entity_id = '007'`).Scan(&debit))
	assert.Equal(t, "200", debit)
}

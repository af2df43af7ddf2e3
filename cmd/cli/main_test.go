package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/ledger-analytics/internal/alerts"
	"github.com/dvloznov/ledger-analytics/internal/compare"
	"github.com/dvloznov/ledger-analytics/internal/evolution"
	bq "github.com/dvloznov/ledger-analytics/internal/infra/bigquery"
	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(t *testing.T) *store.Snapshot {
	t.Helper()
	rec := func(period string, debit int64) ledger.Record {
		return ledger.Record{
			EntityID:     "007",
			EntityName:   "Banco A",
			Period:       ledger.MustParsePeriod(period),
			AccountCode:  "110000",
			AccountLabel: "Disponibilidades",
			Debit:        decimal.NewFromInt(debit),
			Credit:       decimal.Zero,
		}
	}
	snap, err := store.Build([]ledger.Record{rec("202412", 800), rec("202501", 1000)}, taxonomy.Default(), store.Meta{LoadID: "test"})
	require.NoError(t, err)
	return snap
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"007", "011"}, splitList(" 007, ,011 "))
	assert.Nil(t, splitList(""))
}

func TestLatestOr(t *testing.T) {
	snap := testSnapshot(t)
	assert.Equal(t, ledger.MustParsePeriod("202501"), latestOr(snap, ledger.Period{}))
	assert.Equal(t, ledger.MustParsePeriod("202412"), latestOr(snap, ledger.MustParsePeriod("202412")))
}

func TestRenderCompare(t *testing.T) {
	snap := testSnapshot(t)
	result, err := compare.Compare(snap, compare.Request{Period: ledger.MustParsePeriod("202501")})
	require.NoError(t, err)

	var buf bytes.Buffer
	renderCompare(&buf, result)
	out := buf.String()

	assert.Contains(t, out, "Banco A")
	assert.Contains(t, out, "1.000,00")
	assert.Contains(t, out, "800,00")
	assert.Contains(t, out, "25,00%")
}

func TestRenderAlerts_Empty(t *testing.T) {
	var buf bytes.Buffer
	renderAlerts(&buf, nil)
	assert.Equal(t, "No alerts.\n", buf.String())
}

func TestRenderAlerts(t *testing.T) {
	var buf bytes.Buffer
	renderAlerts(&buf, []alerts.Alert{{
		EntityName:  "Banco A",
		Kind:        alerts.CriticalLiquidity,
		Value:       5.5,
		Description: "Liquidity below threshold",
	}})
	out := buf.String()
	assert.Contains(t, out, "critical_liquidity")
	assert.Contains(t, out, "5,50%")
}

func TestRenderEvolution_MissingValues(t *testing.T) {
	table := &evolution.Table{
		Labels: []string{"Banco A - 110000"},
		Rows: []evolution.Row{
			{Period: ledger.MustParsePeriod("202412"), Values: []decimal.NullDecimal{{}}},
			{Period: ledger.MustParsePeriod("202501"), Values: []decimal.NullDecimal{{Decimal: decimal.NewFromInt(1234567), Valid: true}}},
		},
	}

	var buf bytes.Buffer
	renderEvolution(&buf, table)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[1]), "-"))
	assert.Contains(t, lines[2], "1.234.567,00")
}

func TestRenderRuns(t *testing.T) {
	runs := []*bq.LoadRunRow{
		{
			LoadID:        "load-1",
			StartedTS:     time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC),
			Status:        bq.RunStatusSuccess,
			SourcesTotal:  3,
			SourcesLoaded: bigquery.NullInt64{Int64: 2, Valid: true},
			Records:       bigquery.NullInt64{Int64: 420, Valid: true},
		},
		{
			LoadID:       "load-2",
			StartedTS:    time.Date(2025, 2, 1, 11, 0, 0, 0, time.UTC),
			Status:       bq.RunStatusRunning,
			SourcesTotal: 3,
		},
	}

	var buf bytes.Buffer
	renderRuns(&buf, runs)
	out := buf.String()
	assert.Contains(t, out, "2025-02-01 10:00:00")
	assert.Contains(t, out, "2/3")
	assert.Contains(t, out, "420")
	assert.Contains(t, out, "RUNNING")
}

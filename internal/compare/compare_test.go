package compare

import (
	"errors"
	"testing"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(entity, name, period, code string, debit, credit int64) ledger.Record {
	return ledger.Record{
		EntityID:     entity,
		EntityName:   name,
		Period:       ledger.MustParsePeriod(period),
		AccountCode:  code,
		AccountLabel: "label " + code,
		Debit:        decimal.NewFromInt(debit),
		Credit:       decimal.NewFromInt(credit),
	}
}

func snapshot(t *testing.T, records ...ledger.Record) *store.Snapshot {
	t.Helper()
	snap, err := store.Build(records, taxonomy.Default(), store.Meta{})
	require.NoError(t, err)
	return snap
}

func TestCompare_Variation(t *testing.T) {
	snap := snapshot(t,
		rec("007", "Banco A", "202412", "110000", 800, 0),
		rec("007", "Banco A", "202501", "110000", 1000, 0),
	)

	res, err := Compare(snap, Request{Period: ledger.MustParsePeriod("202501")})
	require.NoError(t, err)

	assert.Equal(t, "202412", res.Prior.Key())
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.True(t, row.Balance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, row.PriorBalance.Equal(decimal.NewFromInt(800)))
	assert.True(t, row.AbsVariation.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 25.0, row.PctVariation)
	assert.True(t, row.HasPrior)
	assert.Equal(t, taxonomy.Totalizer1, row.Tags.RollupLevel)
}

func TestCompare_ZeroPriorIsZeroPercent(t *testing.T) {
	snap := snapshot(t,
		rec("007", "Banco A", "202412", "110000", 0, 0),
		rec("007", "Banco A", "202501", "110000", 1000, 0),
		rec("007", "Banco A", "202501", "131100", 50, 0),
	)

	res, err := Compare(snap, Request{Period: ledger.MustParsePeriod("202501")})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	for _, row := range res.Rows {
		assert.Equal(t, 0.0, row.PctVariation, row.AccountCode)
		assert.True(t, row.AbsVariation.Equal(row.Balance))
	}
	assert.True(t, res.Rows[0].HasPrior)
	assert.False(t, res.Rows[1].HasPrior, "missing prior is an outer join, not a drop")
}

func TestCompare_AnchoredOnCurrentPeriod(t *testing.T) {
	snap := snapshot(t,
		rec("007", "Banco A", "202412", "110000", 800, 0),
		rec("007", "Banco A", "202412", "990000", 5, 0),
		rec("007", "Banco A", "202501", "110000", 1000, 0),
	)

	res, err := Compare(snap, Request{Period: ledger.MustParsePeriod("202501")})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "110000", res.Rows[0].AccountCode)
}

func TestCompare_JanuaryRollsBackYear(t *testing.T) {
	snap := snapshot(t,
		rec("007", "Banco A", "202312", "110000", 100, 0),
		rec("007", "Banco A", "202401", "110000", 50, 0),
	)

	res, err := Compare(snap, Request{Period: ledger.MustParsePeriod("202401")})
	require.NoError(t, err)
	assert.Equal(t, "202312", res.Prior.Key())
	assert.Equal(t, -50.0, res.Rows[0].PctVariation)
}

func TestCompare_NegativePriorUsesAbsolute(t *testing.T) {
	snap := snapshot(t,
		rec("007", "Banco A", "202412", "311000", 0, 400),
		rec("007", "Banco A", "202501", "311000", 0, 500),
	)

	res, err := Compare(snap, Request{Period: ledger.MustParsePeriod("202501")})
	require.NoError(t, err)
	assert.Equal(t, -25.0, res.Rows[0].PctVariation)
}

func TestCompare_FiltersAndOrder(t *testing.T) {
	snap := snapshot(t,
		rec("011", "Banco B", "202501", "110000", 1, 0),
		rec("007", "Banco A", "202501", "131100", 2, 0),
		rec("007", "Banco A", "202501", "110000", 3, 0),
		rec("020", "Banco C", "202501", "110000", 4, 0),
	)
	jan := ledger.MustParsePeriod("202501")

	res, err := Compare(snap, Request{Period: jan, Entities: []string{"011", "007"}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, []string{"007", "007", "011"}, []string{res.Rows[0].EntityID, res.Rows[1].EntityID, res.Rows[2].EntityID})
	assert.Equal(t, "110000", res.Rows[0].AccountCode)
	assert.Equal(t, []Entity{{ID: "007", Name: "Banco A"}, {ID: "011", Name: "Banco B"}}, res.Entities())

	res, err = Compare(snap, Request{Period: jan, Accounts: store.Filter{CodePrefix: "13"}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "131100", res.Rows[0].AccountCode)
}

func TestCompare_NoData(t *testing.T) {
	snap := snapshot(t, rec("007", "Banco A", "202501", "110000", 1, 0))

	_, err := Compare(snap, Request{Period: ledger.MustParsePeriod("202502")})
	assert.True(t, errors.Is(err, ledger.ErrNoData))

	_, err = Compare(snap, Request{Period: ledger.MustParsePeriod("202501"), Entities: []string{"999"}})
	assert.True(t, errors.Is(err, ledger.ErrNoData))

	_, err = Compare(nil, Request{})
	assert.True(t, errors.Is(err, ledger.ErrNoData))
}

func TestResult_Sum(t *testing.T) {
	snap := snapshot(t,
		rec("007", "Banco A", "202412", "110000", 80, 0),
		rec("007", "Banco A", "202501", "110000", 100, 0),
		rec("011", "Banco B", "202501", "110000", 50, 0),
	)
	res, err := Compare(snap, Request{Period: ledger.MustParsePeriod("202501")})
	require.NoError(t, err)

	cur, prior := res.Sum("", "110000")
	assert.True(t, cur.Equal(decimal.NewFromInt(150)))
	assert.True(t, prior.Equal(decimal.NewFromInt(80)))

	cur, _ = res.Sum("011", "110000")
	assert.True(t, cur.Equal(decimal.NewFromInt(50)))

	cur, prior = res.Sum("", "300000")
	assert.True(t, cur.IsZero())
	assert.True(t, prior.IsZero())
}

package alerts

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
		EntityID:    entity,
		EntityName:  name,
		Period:      ledger.MustParsePeriod(period),
		AccountCode: code,
		Debit:       decimal.NewFromInt(debit),
		Credit:      decimal.NewFromInt(credit),
	}
}

// healthy returns a month of balances that trips no default threshold.
func healthy(entity, name, period string, deposits int64) []ledger.Record {
	return []ledger.Record{
		rec(entity, name, period, "110000", deposits/2, 0),
		rec(entity, name, period, "310000", 0, deposits),
		rec(entity, name, period, "100000", 10000, 0),
		rec(entity, name, period, "300000", 0, 8000),
	}
}

func scan(t *testing.T, th Thresholds, records ...[]ledger.Record) []Alert {
	t.Helper()
	var all []ledger.Record
	for _, rs := range records {
		all = append(all, rs...)
	}
	snap, err := store.Build(all, taxonomy.Default(), store.Meta{})
	require.NoError(t, err)
	got, err := Scan(snap, ledger.MustParsePeriod("202501"), taxonomy.Default().RatioCodes, th)
	require.NoError(t, err)
	return got
}

func kinds(alerts []Alert) []Kind {
	out := make([]Kind, len(alerts))
	for i, a := range alerts {
		out[i] = a.Kind
	}
	return out
}

func TestScan_Healthy(t *testing.T) {
	got := scan(t, DefaultThresholds(),
		healthy("007", "Banco A", "202412", 1000),
		healthy("007", "Banco A", "202501", 1000),
	)
	assert.Empty(t, got)
}

func TestScan_DepositFlight(t *testing.T) {
	got := scan(t, DefaultThresholds(),
		healthy("007", "Banco A", "202412", 1000),
		healthy("007", "Banco A", "202501", 800),
	)
	require.Equal(t, []Kind{DepositFlight}, kinds(got))
	assert.Equal(t, -20.0, got[0].Value)
	assert.True(t, got[0].Numerator.Equal(decimal.NewFromInt(800)))
	assert.True(t, got[0].Denominator.Equal(decimal.NewFromInt(1000)))
}

func TestScan_DepositDropAtThresholdDoesNotFire(t *testing.T) {
	got := scan(t, DefaultThresholds(),
		healthy("007", "Banco A", "202412", 1000),
		healthy("007", "Banco A", "202501", 850),
	)
	assert.Empty(t, got)
}

func TestScan_LiquidityAndSolvency(t *testing.T) {
	thin := []ledger.Record{
		rec("011", "Banco B", "202501", "110000", 100, 0),
		rec("011", "Banco B", "202501", "310000", 0, 1000),
		rec("011", "Banco B", "202501", "100000", 10000, 0),
		rec("011", "Banco B", "202501", "300000", 0, 9500),
	}
	got := scan(t, DefaultThresholds(), healthy("011", "Banco B", "202412", 1000), thin)

	require.Equal(t, []Kind{CriticalLiquidity, LowSolvency}, kinds(got))
	assert.Equal(t, 10.0, got[0].Value)
	assert.Equal(t, 5.0, got[1].Value)
	assert.True(t, got[1].Numerator.Equal(decimal.NewFromInt(500)))
}

func TestScan_ConfigurableThresholds(t *testing.T) {
	th := Thresholds{DepositDrop: 15, MinLiquidity: 60, MinSolvency: 7}
	got := scan(t, th,
		healthy("007", "Banco A", "202412", 1000),
		healthy("007", "Banco A", "202501", 1000),
	)
	assert.Equal(t, []Kind{CriticalLiquidity}, kinds(got))
}

func TestScan_SkipsEntitiesWithoutPriorMonth(t *testing.T) {
	got := scan(t, DefaultThresholds(),
		healthy("007", "Banco A", "202412", 1000),
		healthy("007", "Banco A", "202501", 1000),
		[]ledger.Record{rec("099", "Nuevo", "202501", "110000", 0, 0)},
	)
	assert.Empty(t, got)
}

func TestScan_SortedByEntityName(t *testing.T) {
	got := scan(t, DefaultThresholds(),
		healthy("011", "Banco B", "202412", 1000),
		healthy("011", "Banco B", "202501", 500),
		healthy("007", "Banco A", "202412", 1000),
		healthy("007", "Banco A", "202501", 500),
	)
	require.Len(t, got, 2)
	assert.Equal(t, "Banco A", got[0].EntityName)
	assert.Equal(t, "Banco B", got[1].EntityName)
}

func TestScan_NoData(t *testing.T) {
	snap, err := store.Build(healthy("007", "Banco A", "202412", 1000), taxonomy.Default(), store.Meta{})
	require.NoError(t, err)

	_, err = Scan(snap, ledger.MustParsePeriod("202501"), taxonomy.Default().RatioCodes, DefaultThresholds())
	assert.True(t, errors.Is(err, ledger.ErrNoData))
}

func TestDeposits_FallsBackToLeafAccounts(t *testing.T) {
	records := []ledger.Record{
		rec("007", "Banco A", "202501", "311000", 0, 999),
		rec("007", "Banco A", "202501", "311101", 0, 300),
		rec("007", "Banco A", "202501", "311102", 0, 200),
		rec("007", "Banco A", "202501", "110000", 10, 0),
	}
	snap, err := store.Build(records, taxonomy.Default(), store.Meta{})
	require.NoError(t, err)

	got := Deposits(snap, records, taxonomy.Default().RatioCodes)
	assert.True(t, got.Equal(decimal.NewFromInt(500)), got.String())

	assert.True(t, Deposits(snap, records, taxonomy.RatioCodes{}).IsZero())
}

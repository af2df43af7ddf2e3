package store

import (
	"errors"
	"sync"
	"testing"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(entity, name, period, code, label string, debit, credit int64) ledger.Record {
	return ledger.Record{
		EntityID:     entity,
		EntityName:   name,
		Period:       ledger.MustParsePeriod(period),
		AccountCode:  code,
		AccountLabel: label,
		Debit:        decimal.NewFromInt(debit),
		Credit:       decimal.NewFromInt(credit),
	}
}

func fixture(t *testing.T) *Snapshot {
	t.Helper()
	records := []ledger.Record{
		rec("007", "Banco A S.A.", "202412", "110000", "Cash", 1000, 0),
		rec("007", "Banco A S.A.", "202412", "311000", "Savings", 0, 500),
		rec("011", "Banco B", "202412", "110000", "Cash", 700, 0),
		rec("007", "Banco A S.A.", "202501", "110000", "Cash", 1100, 0),
		rec("011", "Banco B", "202501", "131100", "Personal loans", 300, 0),
		rec("002", "Banco B", "202501", "110000", "Cash", 50, 0),
	}
	snap, err := Build(records, taxonomy.Default(), Meta{LoadID: "load-1"})
	require.NoError(t, err)
	return snap
}

func TestBuild_Empty(t *testing.T) {
	_, err := Build(nil, taxonomy.Default(), Meta{})
	assert.True(t, errors.Is(err, ledger.ErrNoData))
}

func TestBuild_NilTable(t *testing.T) {
	_, err := Build([]ledger.Record{rec("1", "A", "202401", "110000", "Cash", 1, 0)}, nil, Meta{})
	assert.Error(t, err)
}

func TestSnapshot_Listings(t *testing.T) {
	snap := fixture(t)

	assert.Equal(t, 6, snap.Len())
	assert.Equal(t, "load-1", snap.Meta().LoadID)
	assert.Equal(t, "2024-01", snap.Meta().TableVersion)

	assert.Equal(t, []Entity{
		{ID: "007", Name: "Banco A S.A."},
		{ID: "002", Name: "Banco B"},
		{ID: "011", Name: "Banco B"},
	}, snap.Entities())

	periods := snap.Periods()
	require.Len(t, periods, 2)
	assert.Equal(t, "202412", periods[0].Key())
	assert.Equal(t, "202501", periods[1].Key())

	accounts := snap.Accounts(TagFilter{})
	require.Len(t, accounts, 3)
	assert.Equal(t, "110000", accounts[0].Code)
	assert.Equal(t, taxonomy.Totalizer1, accounts[0].Tags.RollupLevel)

	name, ok := snap.EntityName("011")
	assert.True(t, ok)
	assert.Equal(t, "Banco B", name)
	_, ok = snap.EntityName("999")
	assert.False(t, ok)
}

func TestSnapshot_AccountsByTags(t *testing.T) {
	snap := fixture(t)

	assets := snap.Accounts(TagFilter{BalanceClass: taxonomy.Asset})
	codes := make([]string, 0, len(assets))
	for _, a := range assets {
		codes = append(codes, a.Code)
	}
	assert.Equal(t, []string{"110000", "131100"}, codes)

	leaf := snap.Accounts(TagFilter{BalanceClass: taxonomy.Asset, RollupLevel: taxonomy.Leaf})
	require.Len(t, leaf, 1)
	assert.Equal(t, "131100", leaf[0].Code)

	assert.Equal(t, []string{"Cash and bank deposits", "Loans"}, snap.Categories(TagFilter{BalanceClass: taxonomy.Asset}))
	assert.Equal(t, []string{"Deposits"}, snap.Categories(TagFilter{ViewTag: taxonomy.Subtotal}))
}

func TestSnapshot_Records(t *testing.T) {
	snap := fixture(t)
	jan := ledger.MustParsePeriod("202501")
	dec := ledger.MustParsePeriod("202412")

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{name: "all", filter: Filter{}, want: 6},
		{name: "period", filter: Filter{Periods: []ledger.Period{jan}}, want: 3},
		{name: "duplicate periods", filter: Filter{Periods: []ledger.Period{jan, jan}}, want: 3},
		{name: "entity", filter: Filter{Entities: []string{"007"}}, want: 3},
		{name: "entity and period", filter: Filter{Entities: []string{"007"}, Periods: []ledger.Period{dec}}, want: 2},
		{name: "codes", filter: Filter{Codes: []string{"110000"}}, want: 4},
		{name: "prefix", filter: Filter{CodePrefix: "13"}, want: 1},
		{name: "codes or prefix", filter: Filter{Codes: []string{"110000"}, CodePrefix: "31"}, want: 5},
		{name: "range", filter: Filter{From: jan}, want: 3},
		{name: "range to", filter: Filter{To: dec}, want: 3},
		{name: "tags", filter: Filter{Tags: TagFilter{BalanceClass: taxonomy.Liability}}, want: 1},
		{name: "no match", filter: Filter{Entities: []string{"999"}}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, snap.Records(tt.filter), tt.want)
		})
	}
}

func TestSnapshot_RecordsOrdered(t *testing.T) {
	snap := fixture(t)
	got := snap.Records(Filter{Codes: []string{"110000"}})
	require.Len(t, got, 4)
	assert.Equal(t, "202412", got[0].Period.Key())
	assert.Equal(t, "002", got[2].EntityID)
	assert.Equal(t, "007", got[3].EntityID)
}

func TestSnapshot_EntitiesAt(t *testing.T) {
	snap := fixture(t)
	dec := ledger.MustParsePeriod("202412")

	at := snap.EntitiesAt(dec)
	require.Len(t, at, 2)
	assert.Equal(t, "007", at[0].ID)
	assert.True(t, snap.HasEntity("011", dec))
	assert.False(t, snap.HasEntity("002", dec))
}

func TestSnapshot_CopiesAreIndependent(t *testing.T) {
	snap := fixture(t)
	all := snap.All()
	all[0].EntityName = "mutated"
	assert.NotEqual(t, "mutated", snap.All()[0].EntityName)
}

func TestMeta_Coverage(t *testing.T) {
	m := Meta{Sources: []SourceStatus{{Name: "a", OK: true}, {Name: "b"}, {Name: "c", OK: true}}}
	loaded, total := m.Coverage()
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 3, total)
}

func TestHolder(t *testing.T) {
	h := NewHolder()
	assert.Nil(t, h.Current())

	first := fixture(t)
	assert.Nil(t, h.Swap(first))
	assert.Same(t, first, h.Current())

	held := h.Current()
	second := fixture(t)
	assert.Same(t, first, h.Swap(second))
	assert.Same(t, second, h.Current())
	assert.Equal(t, 6, held.Len())
}

func TestHolder_ConcurrentReaders(t *testing.T) {
	h := NewHolder()
	h.Swap(fixture(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap := h.Current()
				_ = snap.Records(Filter{CodePrefix: "11"})
			}
		}()
	}
	h.Swap(fixture(t))
	wg.Wait()
}

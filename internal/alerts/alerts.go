package alerts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/ratios"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
	"github.com/shopspring/decimal"
)

// Kind is the risk an alert reports.
type Kind string

const (
	DepositFlight     Kind = "deposit_flight"
	CriticalLiquidity Kind = "critical_liquidity"
	LowSolvency       Kind = "low_solvency"
)

var kindOrder = map[Kind]int{DepositFlight: 0, CriticalLiquidity: 1, LowSolvency: 2}

// Thresholds are the limits below which an alert fires. DepositDrop is a
// positive percentage: 15 fires when deposits fall more than 15%.
type Thresholds struct {
	DepositDrop  float64 `json:"deposit_drop"`
	MinLiquidity float64 `json:"min_liquidity"`
	MinSolvency  float64 `json:"min_solvency"`
}

// DefaultThresholds returns the limits used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{DepositDrop: 15, MinLiquidity: 12, MinSolvency: 7}
}

// Alert is one triggered risk condition for one entity.
type Alert struct {
	EntityID    string          `json:"entity_id"`
	EntityName  string          `json:"entity_name"`
	Kind        Kind            `json:"kind"`
	Value       float64         `json:"value"`
	Numerator   decimal.Decimal `json:"numerator"`
	Denominator decimal.Decimal `json:"denominator"`
	Description string          `json:"description"`
}

// Scan checks every entity reporting at period that also reported the
// month before. An empty result means no alert fired; ledger.ErrNoData means
// no entity could be checked.
func Scan(snap *store.Snapshot, period ledger.Period, codes taxonomy.RatioCodes, th Thresholds) ([]Alert, error) {
	if snap == nil {
		return nil, fmt.Errorf("Scan: %w", ledger.ErrNoData)
	}
	prior := period.Prev()

	entities := snap.EntitiesAt(period)
	if len(entities) == 0 {
		return nil, fmt.Errorf("Scan: period %s: %w", period, ledger.ErrNoData)
	}

	current := group(snap.Records(store.Filter{Periods: []ledger.Period{period}}))
	before := group(snap.Records(store.Filter{Periods: []ledger.Period{prior}}))

	out := []Alert{}
	for _, e := range entities {
		if !snap.HasEntity(e.ID, prior) {
			continue
		}
		cur, prev := current[e.ID], before[e.ID]
		out = append(out, check(snap, e, cur, prev, codes, th)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.EntityName != b.EntityName {
			return a.EntityName < b.EntityName
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return kindOrder[a.Kind] < kindOrder[b.Kind]
	})
	return out, nil
}

func check(snap *store.Snapshot, e store.Entity, cur, prev []ledger.Record, codes taxonomy.RatioCodes, th Thresholds) []Alert {
	var out []Alert
	alert := func(kind Kind, value float64, num, den decimal.Decimal, desc string) {
		out = append(out, Alert{
			EntityID:    e.ID,
			EntityName:  e.Name,
			Kind:        kind,
			Value:       value,
			Numerator:   num,
			Denominator: den,
			Description: desc,
		})
	}

	depNow := Deposits(snap, cur, codes)
	depBefore := Deposits(snap, prev, codes)
	if depBefore.IsPositive() {
		v := ledger.Percent(depNow, depBefore) - 100
		if v < -th.DepositDrop {
			alert(DepositFlight, v, depNow, depBefore, "month-over-month change in total deposits")
		}
	}

	cash := sumCode(cur, codes.Cash)
	if liq := ratios.Liquidity(cash, depNow); liq < th.MinLiquidity {
		alert(CriticalLiquidity, liq, cash, depNow, "cash over deposits")
	}

	assets := sumCode(cur, codes.Assets)
	liabilities := sumCode(cur, codes.Liabilities)
	if solv := ratios.Solvency(assets, liabilities); solv < th.MinSolvency {
		alert(LowSolvency, solv, assets.Sub(liabilities.Abs()), assets, "equity over total assets")
	}
	return out
}

// Deposits returns the absolute deposit balance of one entity's records.
// The deposits totalizer is used when reported; otherwise the leaf accounts
// under the deposit prefix are summed, so rollups are never counted twice.
func Deposits(snap *store.Snapshot, records []ledger.Record, codes taxonomy.RatioCodes) decimal.Decimal {
	total := decimal.Zero
	found := false
	for _, r := range records {
		if codes.Deposits != "" && r.AccountCode == codes.Deposits {
			total = total.Add(r.Net())
			found = true
		}
	}
	if found {
		return total.Abs()
	}
	if codes.DepositPrefix == "" {
		return decimal.Zero
	}
	for _, r := range records {
		if !strings.HasPrefix(r.AccountCode, codes.DepositPrefix) {
			continue
		}
		if tags, ok := snap.Tags(r.AccountCode); ok && tags.RollupLevel != taxonomy.Leaf {
			continue
		}
		total = total.Add(r.Net())
	}
	return total.Abs()
}

func sumCode(records []ledger.Record, code string) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.AccountCode == code {
			total = total.Add(r.Net())
		}
	}
	return total
}

func group(records []ledger.Record) map[string][]ledger.Record {
	out := make(map[string][]ledger.Record)
	for _, r := range records {
		out[r.EntityID] = append(out[r.EntityID], r)
	}
	return out
}

package share

import (
	"fmt"
	"sort"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/shopspring/decimal"
)

// Request selects a single-period share computation.
type Request struct {
	Period ledger.Period
	// Accounts selects the account set by code, prefix or tags.
	Accounts store.Filter
	// Entities whose share is reported; empty reports every entity.
	Entities []string
}

// EntityShare is one entity's part of the system total.
type EntityShare struct {
	EntityID   string          `json:"entity_id"`
	EntityName string          `json:"entity_name"`
	Abs        decimal.Decimal `json:"abs"`
	Share      float64         `json:"share"`
}

// Snapshot is the share table of one period.
type Snapshot struct {
	Period      ledger.Period   `json:"period"`
	SystemTotal decimal.Decimal `json:"system_total"`
	Entities    []EntityShare   `json:"entities"`
	// Combined is the summed share of the selected entities.
	Combined float64 `json:"combined"`
}

// AtPeriod computes each selected entity's share of the system-wide
// absolute balance of the account set at one period. Absolute values keep
// credit-natured accounts from cancelling debit-natured ones. A zero system
// total yields ledger.ErrNoData.
func AtPeriod(snap *store.Snapshot, req Request) (*Snapshot, error) {
	if snap == nil {
		return nil, fmt.Errorf("AtPeriod: %w", ledger.ErrNoData)
	}
	records := snap.Records(accountFilter(req.Accounts, req.Period))
	res, ok := compute(snap, req.Period, records, req.Entities)
	if !ok {
		return nil, fmt.Errorf("AtPeriod: period %s: system total is zero: %w", req.Period, ledger.ErrNoData)
	}
	return res, nil
}

// compute reports false when the system total is zero.
func compute(snap *store.Snapshot, p ledger.Period, records []ledger.Record, selected []string) (*Snapshot, bool) {
	total := decimal.Zero
	abs := make(map[string]decimal.Decimal)
	names := make(map[string]string)
	for _, r := range records {
		v := r.Net().Abs()
		total = total.Add(v)
		abs[r.EntityID] = abs[r.EntityID].Add(v)
		names[r.EntityID] = r.EntityName
	}
	if total.IsZero() {
		return nil, false
	}

	ids := selected
	if len(ids) == 0 {
		ids = make([]string, 0, len(abs))
		for id := range abs {
			ids = append(ids, id)
		}
	}

	res := &Snapshot{Period: p, SystemTotal: total}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		v, ok := abs[id]
		if !ok {
			// Selected entities without the accounts hold a zero share.
			v = decimal.Zero
		}
		name, ok := names[id]
		if !ok {
			name, _ = snap.EntityName(id)
		}
		res.Entities = append(res.Entities, EntityShare{EntityID: id, EntityName: name, Abs: v, Share: ledger.Percent(v, total)})
	}
	sort.SliceStable(res.Entities, func(i, j int) bool {
		a, b := res.Entities[i], res.Entities[j]
		if a.Share != b.Share {
			return a.Share > b.Share
		}
		return a.EntityID < b.EntityID
	})

	// Summing decimals keeps the combined share exact before conversion.
	combined := decimal.Zero
	for _, e := range res.Entities {
		combined = combined.Add(e.Abs)
	}
	res.Combined = ledger.Percent(combined, total)
	return res, true
}

func accountFilter(accounts store.Filter, periods ...ledger.Period) store.Filter {
	return store.Filter{
		Periods:    periods,
		Codes:      accounts.Codes,
		CodePrefix: accounts.CodePrefix,
		Tags:       accounts.Tags,
	}
}

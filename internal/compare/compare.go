package compare

import (
	"fmt"
	"sort"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
	"github.com/shopspring/decimal"
)

// Request selects the comparison population.
type Request struct {
	Period ledger.Period
	// Entities restricts the rows; empty means every entity.
	Entities []string
	// Accounts narrows rows by code, prefix or tags. Its entity and period
	// criteria are ignored.
	Accounts store.Filter
}

// Row is one (entity, account) line present at the target period.
type Row struct {
	EntityID     string          `json:"entity_id"`
	EntityName   string          `json:"entity_name"`
	AccountCode  string          `json:"account_code"`
	AccountLabel string          `json:"account_label"`
	Tags         taxonomy.Tags   `json:"tags"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	Balance      decimal.Decimal `json:"balance"`
	PriorBalance decimal.Decimal `json:"prior_balance"`
	HasPrior     bool            `json:"has_prior"`
	AbsVariation decimal.Decimal `json:"abs_variation"`
	// PctVariation is AbsVariation/|PriorBalance|*100, and exactly 0 when
	// the prior balance is zero. The zero is a policy, not an identity.
	PctVariation float64 `json:"pct_variation"`
}

// Result is the variance table of one period against the previous month.
type Result struct {
	Period ledger.Period `json:"period"`
	Prior  ledger.Period `json:"prior"`
	Rows   []Row         `json:"rows"`
}

// Compare aligns every (entity, account) present at req.Period with its
// balance one calendar month earlier. The join is anchored on the current
// period: accounts that exist only in the prior month are left out.
func Compare(snap *store.Snapshot, req Request) (*Result, error) {
	if snap == nil {
		return nil, fmt.Errorf("Compare: %w", ledger.ErrNoData)
	}

	prior := req.Period.Prev()
	filter := store.Filter{
		Entities:   req.Entities,
		Periods:    []ledger.Period{req.Period},
		Codes:      req.Accounts.Codes,
		CodePrefix: req.Accounts.CodePrefix,
		Tags:       req.Accounts.Tags,
	}

	current := snap.Records(filter)
	if len(current) == 0 {
		return nil, fmt.Errorf("Compare: period %s: %w", req.Period, ledger.ErrNoData)
	}

	filter.Periods = []ledger.Period{prior}
	before := make(map[lineKey]decimal.Decimal)
	for _, r := range snap.Records(filter) {
		before[lineKey{r.EntityID, r.AccountCode}] = r.Net()
	}

	rows := make([]Row, 0, len(current))
	for _, r := range current {
		bal := r.Net()
		prev, ok := before[lineKey{r.EntityID, r.AccountCode}]
		if !ok {
			prev = decimal.Zero
		}
		tags, _ := snap.Tags(r.AccountCode)
		rows = append(rows, Row{
			EntityID:     r.EntityID,
			EntityName:   r.EntityName,
			AccountCode:  r.AccountCode,
			AccountLabel: r.AccountLabel,
			Tags:         tags,
			Debit:        r.Debit,
			Credit:       r.Credit,
			Balance:      bal,
			PriorBalance: prev,
			HasPrior:     ok,
			AbsVariation: bal.Sub(prev),
			PctVariation: ledger.Change(bal, prev),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.EntityName != b.EntityName {
			return a.EntityName < b.EntityName
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.AccountCode < b.AccountCode
	})

	return &Result{Period: req.Period, Prior: prior, Rows: rows}, nil
}

type lineKey struct {
	entity string
	code   string
}

// Entity identifies one entity of a result.
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Entities lists the entities of the result in row order.
func (r *Result) Entities() []Entity {
	var out []Entity
	seen := make(map[string]struct{})
	for _, row := range r.Rows {
		if _, ok := seen[row.EntityID]; ok {
			continue
		}
		seen[row.EntityID] = struct{}{}
		out = append(out, Entity{ID: row.EntityID, Name: row.EntityName})
	}
	return out
}

// Sum adds current and prior balances of code. An empty entityID sums
// across every entity of the result. Absent codes sum to zero.
func (r *Result) Sum(entityID, code string) (current, prior decimal.Decimal) {
	current, prior = decimal.Zero, decimal.Zero
	for _, row := range r.Rows {
		if row.AccountCode != code {
			continue
		}
		if entityID != "" && row.EntityID != entityID {
			continue
		}
		current = current.Add(row.Balance)
		prior = prior.Add(row.PriorBalance)
	}
	return current, prior
}

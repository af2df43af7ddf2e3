package evolution

import (
	"fmt"
	"sort"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/shopspring/decimal"
)

// Row is one period of the pivot. Values align with Table.Labels; a cell
// with no records is invalid, which is distinct from a zero balance.
type Row struct {
	Period ledger.Period         `json:"period"`
	Values []decimal.NullDecimal `json:"values"`
}

// Table is the net balance of a selection pivoted by period and label.
type Table struct {
	Labels []string `json:"labels"`
	Rows   []Row    `json:"rows"`
}

// Build pivots the summed net balance of the selected entities and account
// codes over every period. Series are labelled by account when one entity is
// selected, by entity when one account is selected, and by "entity (code)"
// otherwise.
func Build(snap *store.Snapshot, entities, codes []string) (*Table, error) {
	if snap == nil || len(entities) == 0 || len(codes) == 0 {
		return nil, fmt.Errorf("evolution.Build: empty selection: %w", ledger.ErrNoData)
	}

	label := func(r ledger.Record) string {
		return fmt.Sprintf("%s (%s)", r.EntityName, r.AccountCode)
	}
	switch {
	case len(entities) == 1:
		label = func(r ledger.Record) string { return r.AccountLabel }
	case len(codes) == 1:
		label = func(r ledger.Record) string { return r.EntityName }
	}

	records := snap.Records(store.Filter{Entities: entities, Codes: codes})
	if len(records) == 0 {
		return nil, fmt.Errorf("evolution.Build: %w", ledger.ErrNoData)
	}

	type cell struct {
		period ledger.Period
		label  string
	}
	sums := make(map[cell]decimal.Decimal)
	labelSet := make(map[string]struct{})
	var periods []ledger.Period
	for _, r := range records {
		c := cell{period: r.Period, label: label(r)}
		if len(periods) == 0 || periods[len(periods)-1] != r.Period {
			periods = append(periods, r.Period)
		}
		sums[c] = sums[c].Add(r.Net())
		labelSet[c.label] = struct{}{}
	}

	t := &Table{}
	for l := range labelSet {
		t.Labels = append(t.Labels, l)
	}
	sort.Strings(t.Labels)

	// Snapshot records arrive in period order, so periods is already sorted.
	for _, p := range periods {
		row := Row{Period: p, Values: make([]decimal.NullDecimal, len(t.Labels))}
		for i, l := range t.Labels {
			if v, ok := sums[cell{period: p, label: l}]; ok {
				row.Values[i] = decimal.NewNullDecimal(v)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Series returns the column for label, or false if it is not in the table.
func (t *Table) Series(label string) ([]decimal.NullDecimal, bool) {
	idx := sort.SearchStrings(t.Labels, label)
	if idx >= len(t.Labels) || t.Labels[idx] != label {
		return nil, false
	}
	out := make([]decimal.NullDecimal, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row.Values[idx]
	}
	return out, true
}

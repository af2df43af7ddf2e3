package share

import (
	"fmt"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/shopspring/decimal"
)

// SeriesRequest selects a share time series. Zero From or To leaves that
// end of the range open.
type SeriesRequest struct {
	From     ledger.Period
	To       ledger.Period
	Accounts store.Filter
	Entities []string
}

// SeriesRow is one entity's share at one period.
type SeriesRow struct {
	Period     ledger.Period   `json:"period"`
	EntityID   string          `json:"entity_id"`
	EntityName string          `json:"entity_name"`
	Abs        decimal.Decimal `json:"abs"`
	Share      float64         `json:"share"`
}

// PeriodTotal is the system total at one period.
type PeriodTotal struct {
	Period ledger.Period   `json:"period"`
	Total  decimal.Decimal `json:"total"`
	// MoM is the percent change against the nearest earlier period in the
	// series. It is nil for the first period and 0 after a zero total.
	MoM *float64 `json:"mom,omitempty"`
}

// Series is the chronological share table of a period range.
type Series struct {
	Rows   []SeriesRow   `json:"rows"`
	Totals []PeriodTotal `json:"totals"`
}

// BuildSeries repeats the single-period computation for every period in the
// range that holds matching accounts. Periods are ordered by their YYYYMM
// key; coverage gaps are tolerated and month-over-month change is taken
// against whichever period precedes in the series.
func BuildSeries(snap *store.Snapshot, req SeriesRequest) (*Series, error) {
	if snap == nil {
		return nil, fmt.Errorf("BuildSeries: %w", ledger.ErrNoData)
	}

	f := accountFilter(req.Accounts)
	f.From, f.To = req.From, req.To

	// Records come back in period order.
	var (
		periods []ledger.Period
		groups  = make(map[ledger.Period][]ledger.Record)
	)
	for _, r := range snap.Records(f) {
		if _, ok := groups[r.Period]; !ok {
			periods = append(periods, r.Period)
		}
		groups[r.Period] = append(groups[r.Period], r)
	}
	ledger.SortPeriods(periods)

	out := &Series{}
	var prev *decimal.Decimal
	for _, p := range periods {
		records := groups[p]
		total := ledger.SumAbs(records)

		pt := PeriodTotal{Period: p, Total: total}
		if prev != nil {
			mom := ledger.Change(total, *prev)
			pt.MoM = &mom
		}
		out.Totals = append(out.Totals, pt)
		prev = &total

		snapAt, ok := compute(snap, p, records, req.Entities)
		if !ok {
			continue
		}
		for _, e := range snapAt.Entities {
			out.Rows = append(out.Rows, SeriesRow{
				Period:     p,
				EntityID:   e.EntityID,
				EntityName: e.EntityName,
				Abs:        e.Abs,
				Share:      e.Share,
			})
		}
	}

	if len(out.Rows) == 0 {
		return nil, fmt.Errorf("BuildSeries: %s..%s: %w", req.From, req.To, ledger.ErrNoData)
	}
	return out, nil
}

package ratios

import (
	"github.com/dvloznov/ledger-analytics/internal/compare"
	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
	"github.com/shopspring/decimal"
)

// Indicator names.
const (
	NameLiquidity     = "liquidity"
	NameSolvency      = "solvency"
	NameLoansToAssets = "loans_to_assets"
)

// Indicator is one named ratio for the target and prior periods.
type Indicator struct {
	Name    string  `json:"name"`
	Current float64 `json:"current"`
	Prior   float64 `json:"prior"`
	Delta   float64 `json:"delta"`
}

// Balances are the summed totalizer balances a ratio set is built from.
type Balances struct {
	Cash        decimal.Decimal `json:"cash"`
	Deposits    decimal.Decimal `json:"deposits"`
	Loans       decimal.Decimal `json:"loans"`
	Assets      decimal.Decimal `json:"assets"`
	Liabilities decimal.Decimal `json:"liabilities"`
}

// EntityRatios holds the indicators of one entity, or of the aggregate when
// EntityID is empty.
type EntityRatios struct {
	EntityID      string    `json:"entity_id,omitempty"`
	Name          string    `json:"name"`
	Liquidity     Indicator `json:"liquidity"`
	Solvency      Indicator `json:"solvency"`
	LoansToAssets Indicator `json:"loans_to_assets"`
	Current       Balances  `json:"current"`
	Prior         Balances  `json:"prior"`
}

// Indicators returns the three ratios in a fixed order.
func (e EntityRatios) Indicators() []Indicator {
	return []Indicator{e.Liquidity, e.Solvency, e.LoansToAssets}
}

// Report is the ratio set of a comparison result.
type Report struct {
	Period   ledger.Period  `json:"period"`
	Prior    ledger.Period  `json:"prior"`
	Combined EntityRatios   `json:"combined"`
	Entities []EntityRatios `json:"entities"`
}

// CombinedName labels the aggregate over every entity of a result.
const CombinedName = "All selected entities"

// Compute derives the ratios of every entity in result and of their
// aggregate. Missing totalizer codes sum to zero and the ratios that divide
// by them degrade to zero.
func Compute(result *compare.Result, codes taxonomy.RatioCodes) Report {
	if result == nil {
		return Report{Combined: EntityRatios{Name: CombinedName}}
	}

	report := Report{
		Period:   result.Period,
		Prior:    result.Prior,
		Combined: build("", CombinedName, result, codes),
	}
	for _, e := range result.Entities() {
		report.Entities = append(report.Entities, build(e.ID, e.Name, result, codes))
	}
	return report
}

func build(entityID, name string, result *compare.Result, codes taxonomy.RatioCodes) EntityRatios {
	var cur, prior Balances
	cur.Cash, prior.Cash = result.Sum(entityID, codes.Cash)
	cur.Deposits, prior.Deposits = result.Sum(entityID, codes.Deposits)
	cur.Loans, prior.Loans = result.Sum(entityID, codes.Loans)
	cur.Assets, prior.Assets = result.Sum(entityID, codes.Assets)
	cur.Liabilities, prior.Liabilities = result.Sum(entityID, codes.Liabilities)

	return EntityRatios{
		EntityID:      entityID,
		Name:          name,
		Liquidity:     indicator(NameLiquidity, Liquidity(cur.Cash, cur.Deposits), Liquidity(prior.Cash, prior.Deposits)),
		Solvency:      indicator(NameSolvency, Solvency(cur.Assets, cur.Liabilities), Solvency(prior.Assets, prior.Liabilities)),
		LoansToAssets: indicator(NameLoansToAssets, LoansToAssets(cur.Loans, cur.Assets), LoansToAssets(prior.Loans, prior.Assets)),
		Current:       cur,
		Prior:         prior,
	}
}

func indicator(name string, cur, prior float64) Indicator {
	return Indicator{Name: name, Current: cur, Prior: prior, Delta: cur - prior}
}

// Liquidity is cash/|deposits|*100. Deposits carry credit balances, so the
// absolute value keeps the ratio positive.
func Liquidity(cash, deposits decimal.Decimal) float64 {
	return ledger.Percent(cash, deposits.Abs())
}

// Solvency is (assets-|liabilities|)/assets*100.
func Solvency(assets, liabilities decimal.Decimal) float64 {
	return ledger.Percent(assets.Sub(liabilities.Abs()), assets)
}

// LoansToAssets is loans/assets*100.
func LoansToAssets(loans, assets decimal.Decimal) float64 {
	return ledger.Percent(loans, assets)
}

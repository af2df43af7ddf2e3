package ledger

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Percent returns num/den*100 as a float, or 0 when den is zero.
// The zero default is a policy: partial data under-reports, it never fails.
func Percent(num, den decimal.Decimal) float64 {
	if den.IsZero() {
		return 0
	}
	return num.Mul(hundred).DivRound(den, 8).InexactFloat64()
}

// Change returns (cur-prev)/|prev|*100, or 0 when prev is zero.
func Change(cur, prev decimal.Decimal) float64 {
	return Percent(cur.Sub(prev), prev.Abs())
}

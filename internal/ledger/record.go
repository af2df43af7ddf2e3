package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoData signals that a query matched nothing. It is a valid outcome,
// distinct from a result that matched and summed to zero.
var ErrNoData = errors.New("no data")

// AccountCodeLen is the fixed width of an account code.
const AccountCodeLen = 6

// Record is one account line for one entity at one period-end.
type Record struct {
	EntityID     string
	EntityName   string
	Period       Period
	AccountCode  string
	AccountLabel string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
}

// Net returns debit minus credit.
func (r Record) Net() decimal.Decimal {
	return r.Debit.Sub(r.Credit)
}

// Key identifies a record within a load.
func (r Record) Key() RecordKey {
	return RecordKey{EntityID: r.EntityID, Period: r.Period, AccountCode: r.AccountCode}
}

// Equal reports whether two records carry identical values.
func (r Record) Equal(o Record) bool {
	return r.EntityID == o.EntityID &&
		r.EntityName == o.EntityName &&
		r.Period == o.Period &&
		r.AccountCode == o.AccountCode &&
		r.AccountLabel == o.AccountLabel &&
		r.Debit.Equal(o.Debit) &&
		r.Credit.Equal(o.Credit)
}

// RecordKey is the identity of a ledger line.
type RecordKey struct {
	EntityID    string
	Period      Period
	AccountCode string
}

// ValidAccountCode reports whether code is exactly AccountCodeLen ASCII digits.
func ValidAccountCode(code string) bool {
	if len(code) != AccountCodeLen {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// SumAbs adds the absolute net balance of every record.
func SumAbs(records []Record) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Net().Abs())
	}
	return total
}

// Package format renders numbers in the Argentine convention: "." groups
// thousands and "," separates decimals.
package format

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount renders d with two decimals, e.g. "-1.234.567,89".
func Amount(d decimal.Decimal) string {
	return group(d.StringFixed(2))
}

// Float renders f with the given number of decimals.
func Float(f float64, decimals int) string {
	return group(strconv.FormatFloat(f, 'f', decimals, 64))
}

// Percent renders f with two decimals and a percent sign, e.g. "12,50%".
func Percent(f float64) string {
	return Float(f, 2) + "%"
}

// group rewrites a plain "-1234.56" numeral.
func group(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteByte('.')
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}

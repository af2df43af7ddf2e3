package ledger

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
)

// Period is a calendar year-month reporting snapshot.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses a 6-digit YYYYMM tag (e.g. "202401").
func ParsePeriod(s string) (Period, error) {
	if len(s) != 6 {
		return Period{}, fmt.Errorf("ParsePeriod: %q: want 6 characters, got %d", s, len(s))
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return Period{}, fmt.Errorf("ParsePeriod: %q: non-digit character", s)
		}
	}

	year, _ := strconv.Atoi(s[:4])
	month, _ := strconv.Atoi(s[4:])
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("ParsePeriod: %q: month %d out of range", s, month)
	}

	return Period{Year: year, Month: time.Month(month)}, nil
}

// MustParsePeriod is ParsePeriod for literals known to be valid.
func MustParsePeriod(s string) Period {
	p, err := ParsePeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Key returns the YYYYMM tag. Keys sort chronologically as plain strings.
func (p Period) Key() string {
	return fmt.Sprintf("%04d%02d", p.Year, int(p.Month))
}

// String implements fmt.Stringer using the sortable key.
func (p Period) String() string {
	return p.Key()
}

// Display returns the month-first form used for presentation ("01-2025").
// It does not sort correctly across year boundaries; use Key for ordering.
func (p Period) Display() string {
	return fmt.Sprintf("%02d-%04d", int(p.Month), p.Year)
}

// Prev returns the previous calendar month. January rolls back to December
// of the previous year.
func (p Period) Prev() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Before reports whether p is chronologically earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// IsZero reports whether p is the zero Period.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// EndDate returns the last calendar day of the period.
func (p Period) EndDate() civil.Date {
	last := time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC)
	return civil.DateOf(last)
}

// MarshalText encodes the period as its YYYYMM key.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.Key()), nil
}

// UnmarshalText decodes a YYYYMM key.
func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// SortPeriods sorts periods chronologically in place.
func SortPeriods(ps []Period) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Before(ps[j]) })
}

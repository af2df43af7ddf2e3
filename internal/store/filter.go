package store

import (
	"strings"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
)

// TagFilter restricts accounts by classification. Empty fields match anything.
type TagFilter struct {
	BalanceClass taxonomy.BalanceClass
	RollupLevel  taxonomy.RollupLevel
	Category     string
	ViewTag      taxonomy.ViewTag
}

// IsZero reports whether the filter matches every account.
func (f TagFilter) IsZero() bool {
	return f == TagFilter{}
}

// Match reports whether tags satisfy every set field.
func (f TagFilter) Match(tags taxonomy.Tags) bool {
	if f.BalanceClass != "" && tags.BalanceClass != f.BalanceClass {
		return false
	}
	if f.RollupLevel != "" && tags.RollupLevel != f.RollupLevel {
		return false
	}
	if f.Category != "" && tags.Category != f.Category {
		return false
	}
	if f.ViewTag != "" && tags.ViewTag != f.ViewTag {
		return false
	}
	return true
}

// Filter selects records. All set criteria combine with logical AND; an
// empty set or zero value places no restriction.
type Filter struct {
	Entities []string
	Periods  []ledger.Period
	From     ledger.Period
	To       ledger.Period

	// Codes and CodePrefix are alternatives: an account matches when its
	// code is in Codes or starts with CodePrefix. Either may be empty.
	Codes      []string
	CodePrefix string

	Tags TagFilter
}

// HasAccountCriteria reports whether the filter restricts accounts.
func (f Filter) HasAccountCriteria() bool {
	return len(f.Codes) > 0 || f.CodePrefix != "" || !f.Tags.IsZero()
}

// compiled is a Filter with its sets materialized for lookups.
type compiled struct {
	Filter
	entities map[string]struct{}
	periods  map[ledger.Period]struct{}
	codes    map[string]struct{}
}

func compile(f Filter) compiled {
	c := compiled{Filter: f}
	if len(f.Entities) > 0 {
		c.entities = make(map[string]struct{}, len(f.Entities))
		for _, e := range f.Entities {
			c.entities[e] = struct{}{}
		}
	}
	if len(f.Periods) > 0 {
		c.periods = make(map[ledger.Period]struct{}, len(f.Periods))
		for _, p := range f.Periods {
			c.periods[p] = struct{}{}
		}
	}
	if len(f.Codes) > 0 {
		c.codes = make(map[string]struct{}, len(f.Codes))
		for _, code := range f.Codes {
			c.codes[code] = struct{}{}
		}
	}
	return c
}

func (c compiled) matchPeriod(p ledger.Period) bool {
	if c.periods != nil {
		if _, ok := c.periods[p]; !ok {
			return false
		}
	}
	if !c.From.IsZero() && p.Before(c.From) {
		return false
	}
	if !c.To.IsZero() && c.To.Before(p) {
		return false
	}
	return true
}

func (c compiled) matchEntity(id string) bool {
	if c.entities == nil {
		return true
	}
	_, ok := c.entities[id]
	return ok
}

func (c compiled) matchCode(code string) bool {
	if c.codes == nil && c.CodePrefix == "" {
		return true
	}
	if c.codes != nil {
		if _, ok := c.codes[code]; ok {
			return true
		}
	}
	return c.CodePrefix != "" && strings.HasPrefix(code, c.CodePrefix)
}

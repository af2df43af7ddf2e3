package handlers

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
)

// list reads a parameter given repeatedly or as a comma-separated list.
func list(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// period parses key as YYYYMM. An absent value yields def.
func period(q url.Values, key string, def ledger.Period) (ledger.Period, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	p, err := ledger.ParsePeriod(v)
	if err != nil {
		return ledger.Period{}, fmt.Errorf("invalid %s: %q", key, v)
	}
	return p, nil
}

// latest returns the newest period of snap.
func latest(snap *store.Snapshot) ledger.Period {
	ps := snap.Periods()
	if len(ps) == 0 {
		return ledger.Period{}
	}
	return ps[len(ps)-1]
}

func tagFilter(q url.Values) store.TagFilter {
	return store.TagFilter{
		BalanceClass: taxonomy.BalanceClass(q.Get("balance_class")),
		RollupLevel:  taxonomy.RollupLevel(q.Get("rollup")),
		Category:     q.Get("category"),
		ViewTag:      taxonomy.ViewTag(q.Get("view")),
	}
}

// accountFilter reads the account selection: explicit codes, a code prefix
// and classification tags.
func accountFilter(q url.Values) (store.Filter, error) {
	f := store.Filter{
		Codes:      list(q, "account"),
		CodePrefix: strings.TrimSpace(q.Get("prefix")),
		Tags:       tagFilter(q),
	}
	for _, c := range f.Codes {
		if !ledger.ValidAccountCode(c) {
			return store.Filter{}, fmt.Errorf("invalid account code: %q", c)
		}
	}
	return f, nil
}

func intParam(q url.Values, key string, def int) int {
	if v := q.Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

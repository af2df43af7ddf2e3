package normalize

import (
	"sort"

	"github.com/dvloznov/ledger-analytics/internal/extract"
	"github.com/dvloznov/ledger-analytics/internal/ledger"
)

// IdentityMap maps stable identifiers to their most recent display label.
type IdentityMap struct {
	Entities map[string]string
	Accounts map[string]string
}

// Report summarizes what normalization changed.
type Report struct {
	Input         int `json:"input"`
	Output        int `json:"output"`
	Renamed       int `json:"renamed"`
	Duplicates    int `json:"duplicates"`
	KeyCollisions int `json:"key_collisions"`
}

// Normalize reconciles entity names and account labels across periods.
//
// Records are cleaned, ordered by period, relabelled with the label of the
// chronologically latest record bearing each key, and deduplicated. When
// two different rows share (entity, period, account) the later one wins.
func Normalize(records []ledger.Record) ([]ledger.Record, IdentityMap, Report) {
	report := Report{Input: len(records)}

	sorted := make([]ledger.Record, len(records))
	for i, r := range records {
		sorted[i] = cleanRecord(r)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Period.Before(sorted[j].Period)
	})

	ids := buildIdentityMap(sorted)

	for i := range sorted {
		name := ids.Entities[sorted[i].EntityID]
		label := ids.Accounts[sorted[i].AccountCode]
		if sorted[i].EntityName != name || sorted[i].AccountLabel != label {
			report.Renamed++
		}
		sorted[i].EntityName = name
		sorted[i].AccountLabel = label
	}

	// Later rows in sorted order replace earlier ones with the same key,
	// keeping the slot of the first occurrence.
	out := make([]ledger.Record, 0, len(sorted))
	slot := make(map[ledger.RecordKey]int, len(sorted))
	for _, r := range sorted {
		k := r.Key()
		i, seen := slot[k]
		if !seen {
			slot[k] = len(out)
			out = append(out, r)
			continue
		}
		if out[i].Equal(r) {
			report.Duplicates++
			continue
		}
		report.KeyCollisions++
		out[i] = r
	}

	report.Output = len(out)
	return out, ids, report
}

// BuildIdentityMap derives the canonical labels from records in any order.
func BuildIdentityMap(records []ledger.Record) IdentityMap {
	sorted := make([]ledger.Record, len(records))
	for i, r := range records {
		sorted[i] = cleanRecord(r)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Period.Before(sorted[j].Period)
	})
	return buildIdentityMap(sorted)
}

// buildIdentityMap expects records already sorted by period.
func buildIdentityMap(sorted []ledger.Record) IdentityMap {
	ids := IdentityMap{
		Entities: make(map[string]string),
		Accounts: make(map[string]string),
	}
	for _, r := range sorted {
		ids.Entities[r.EntityID] = r.EntityName
		ids.Accounts[r.AccountCode] = r.AccountLabel
	}
	return ids
}

func cleanRecord(r ledger.Record) ledger.Record {
	r.EntityID = extract.Clean(r.EntityID)
	r.EntityName = extract.Clean(r.EntityName)
	r.AccountCode = extract.Clean(r.AccountCode)
	r.AccountLabel = extract.Clean(r.AccountLabel)
	return r
}

package store

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
)

// SourceStatus reports how one extract fared during a load.
type SourceStatus struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Records int    `json:"records"`
}

// Meta describes the load that produced a snapshot.
type Meta struct {
	LoadID       string         `json:"load_id"`
	BuiltAt      time.Time      `json:"built_at"`
	TableVersion string         `json:"table_version"`
	Sources      []SourceStatus `json:"sources,omitempty"`
}

// Coverage returns the number of sources that loaded and the total attempted.
func (m Meta) Coverage() (loaded, total int) {
	for _, s := range m.Sources {
		if s.OK {
			loaded++
		}
	}
	return loaded, len(m.Sources)
}

// Entity is a reporting institution under its canonical name.
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Account is a chart-of-accounts line with its derived tags.
type Account struct {
	Code  string        `json:"code"`
	Label string        `json:"label"`
	Tags  taxonomy.Tags `json:"tags"`
}

// Snapshot is an immutable, fully built ledger dataset. All methods are
// safe for concurrent use.
type Snapshot struct {
	records  []ledger.Record
	tags     map[string]taxonomy.Tags
	byPeriod map[ledger.Period][]int
	byEntity map[string][]int
	entities []Entity
	periods  []ledger.Period
	accounts []Account
	meta     Meta
}

// Build indexes normalized records into a snapshot. Every account code is
// classified once with table. An empty record set yields ledger.ErrNoData:
// a store with zero records is never valid.
func Build(records []ledger.Record, table *taxonomy.Table, meta Meta) (*Snapshot, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("store.Build: %w", ledger.ErrNoData)
	}
	if table == nil {
		return nil, fmt.Errorf("store.Build: nil taxonomy table")
	}

	rs := make([]ledger.Record, len(records))
	copy(rs, records)
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.Period != b.Period {
			return a.Period.Before(b.Period)
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.AccountCode < b.AccountCode
	})

	s := &Snapshot{
		records:  rs,
		tags:     make(map[string]taxonomy.Tags),
		byPeriod: make(map[ledger.Period][]int),
		byEntity: make(map[string][]int),
		meta:     meta,
	}
	if s.meta.TableVersion == "" {
		s.meta.TableVersion = table.Version
	}

	names := make(map[string]string)
	labels := make(map[string]string)
	for i, r := range rs {
		s.byPeriod[r.Period] = append(s.byPeriod[r.Period], i)
		s.byEntity[r.EntityID] = append(s.byEntity[r.EntityID], i)
		if _, ok := s.tags[r.AccountCode]; !ok {
			s.tags[r.AccountCode] = table.Classify(r.AccountCode)
		}
		// Records are in period order, so the last label seen is the latest.
		names[r.EntityID] = r.EntityName
		labels[r.AccountCode] = r.AccountLabel
	}

	for id, name := range names {
		s.entities = append(s.entities, Entity{ID: id, Name: name})
	}
	sort.Slice(s.entities, func(i, j int) bool {
		if s.entities[i].Name != s.entities[j].Name {
			return s.entities[i].Name < s.entities[j].Name
		}
		return s.entities[i].ID < s.entities[j].ID
	})

	for p := range s.byPeriod {
		s.periods = append(s.periods, p)
	}
	ledger.SortPeriods(s.periods)

	for code, label := range labels {
		s.accounts = append(s.accounts, Account{Code: code, Label: label, Tags: s.tags[code]})
	}
	sort.Slice(s.accounts, func(i, j int) bool { return s.accounts[i].Code < s.accounts[j].Code })

	return s, nil
}

// Len returns the number of records.
func (s *Snapshot) Len() int { return len(s.records) }

// Meta returns load metadata.
func (s *Snapshot) Meta() Meta { return s.meta }

// All returns a copy of every record in period, entity, account order.
func (s *Snapshot) All() []ledger.Record {
	out := make([]ledger.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Tags returns the classification of code. Codes absent from the snapshot
// are reported as unknown.
func (s *Snapshot) Tags(code string) (taxonomy.Tags, bool) {
	t, ok := s.tags[code]
	return t, ok
}

// Records returns the records matching every criterion of f.
func (s *Snapshot) Records(f Filter) []ledger.Record {
	c := compile(f)
	var out []ledger.Record
	for _, i := range s.candidates(c) {
		r := s.records[i]
		if !c.matchPeriod(r.Period) || !c.matchEntity(r.EntityID) || !c.matchCode(r.AccountCode) {
			continue
		}
		if !c.Tags.IsZero() && !c.Tags.Match(s.tags[r.AccountCode]) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// candidates narrows the scan using the period or entity index.
func (s *Snapshot) candidates(c compiled) []int {
	var idx []int
	switch {
	case len(c.Periods) > 0:
		for _, p := range uniquePeriods(c.Periods) {
			idx = append(idx, s.byPeriod[p]...)
		}
	case len(c.Entities) > 0:
		seen := make(map[string]struct{}, len(c.Entities))
		for _, e := range c.Entities {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			idx = append(idx, s.byEntity[e]...)
		}
	default:
		idx = make([]int, len(s.records))
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	sort.Ints(idx)
	return idx
}

// Entities lists every entity under its canonical name.
func (s *Snapshot) Entities() []Entity {
	out := make([]Entity, len(s.entities))
	copy(out, s.entities)
	return out
}

// EntityName returns the canonical name for id.
func (s *Snapshot) EntityName(id string) (string, bool) {
	for _, e := range s.entities {
		if e.ID == id {
			return e.Name, true
		}
	}
	return "", false
}

// HasEntity reports whether id has any record at p.
func (s *Snapshot) HasEntity(id string, p ledger.Period) bool {
	for _, i := range s.byPeriod[p] {
		if s.records[i].EntityID == id {
			return true
		}
	}
	return false
}

// EntitiesAt lists the entities reporting at p.
func (s *Snapshot) EntitiesAt(p ledger.Period) []Entity {
	present := make(map[string]struct{})
	for _, i := range s.byPeriod[p] {
		present[s.records[i].EntityID] = struct{}{}
	}
	var out []Entity
	for _, e := range s.entities {
		if _, ok := present[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Periods lists the distinct periods in chronological order.
func (s *Snapshot) Periods() []ledger.Period {
	out := make([]ledger.Period, len(s.periods))
	copy(out, s.periods)
	return out
}

// Accounts lists the distinct accounts whose tags match f.
func (s *Snapshot) Accounts(f TagFilter) []Account {
	var out []Account
	for _, a := range s.accounts {
		if f.Match(a.Tags) {
			out = append(out, a)
		}
	}
	return out
}

// Categories lists the distinct category names among accounts matching f,
// sorted by name. It backs cascading account pickers.
func (s *Snapshot) Categories(f TagFilter) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range s.Accounts(f) {
		if _, ok := seen[a.Tags.Category]; ok {
			continue
		}
		seen[a.Tags.Category] = struct{}{}
		out = append(out, a.Tags.Category)
	}
	sort.Strings(out)
	return out
}

func uniquePeriods(ps []ledger.Period) []ledger.Period {
	seen := make(map[ledger.Period]struct{}, len(ps))
	out := make([]ledger.Period, 0, len(ps))
	for _, p := range ps {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Holder publishes the current snapshot. Readers that obtained a snapshot
// keep using it while a newer one is swapped in.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder returns an empty holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Current returns the latest snapshot, or nil before the first load.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Swap installs s and returns the previous snapshot.
func (h *Holder) Swap(s *Snapshot) *Snapshot {
	return h.current.Swap(s)
}

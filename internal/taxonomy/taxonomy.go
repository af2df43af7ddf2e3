package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"gopkg.in/yaml.v3"
)

// BalanceClass is the balance-sheet mass of an account.
type BalanceClass string

const (
	Asset      BalanceClass = "Asset"
	Liability  BalanceClass = "Liability"
	Equity     BalanceClass = "Equity"
	OffBalance BalanceClass = "Off-balance"
	OtherClass BalanceClass = "Other"
)

// RollupLevel is the aggregation tier signalled by trailing zeros.
type RollupLevel string

const (
	Totalizer1 RollupLevel = "Totalizer-1"
	Totalizer2 RollupLevel = "Totalizer-2"
	Totalizer3 RollupLevel = "Totalizer-3"
	Totalizer4 RollupLevel = "Totalizer-4"
	Leaf       RollupLevel = "Leaf"
)

// ViewTag is a coarse partition of RollupLevel for simplified views.
type ViewTag string

const (
	Macro     ViewTag = "Macro"
	Subtotal  ViewTag = "Subtotal"
	OtherView ViewTag = "Other"
)

// OtherCategory is the category of codes whose prefix is not in the table.
const OtherCategory = "Other"

// Tags are the classifications derived from one account code.
type Tags struct {
	BalanceClass BalanceClass `json:"balance_class"`
	RollupLevel  RollupLevel  `json:"rollup_level"`
	Category     string       `json:"category"`
	ViewTag      ViewTag      `json:"view_tag"`
}

// RatioCodes names the totalizer accounts the ratio engine reads.
type RatioCodes struct {
	Cash          string `yaml:"cash" json:"cash"`
	Deposits      string `yaml:"deposits" json:"deposits"`
	Loans         string `yaml:"loans" json:"loans"`
	Assets        string `yaml:"assets" json:"assets"`
	Liabilities   string `yaml:"liabilities" json:"liabilities"`
	DepositPrefix string `yaml:"deposit_prefix" json:"deposit_prefix"`
}

// Table is a versioned classification table.
type Table struct {
	Version         string                  `yaml:"version"`
	BalanceClasses  map[string]BalanceClass `yaml:"balance_classes"`
	Categories      map[string]string       `yaml:"categories"`
	Totalizer4Codes []string                `yaml:"totalizer4_codes"`
	RatioCodes      RatioCodes              `yaml:"ratio_codes"`

	special map[string]struct{}
}

//go:embed default_table.yaml
var defaultTableYAML []byte

// Default returns the embedded table.
func Default() *Table {
	t, err := Parse(defaultTableYAML)
	if err != nil {
		panic(fmt.Sprintf("taxonomy: embedded table is invalid: %v", err))
	}
	return t
}

// LoadTable reads a table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadTable: read %q: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("LoadTable: %q: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a YAML table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.index()
	return &t, nil
}

// Validate checks table keys and codes.
func (t *Table) Validate() error {
	var problems []string

	if strings.TrimSpace(t.Version) == "" {
		problems = append(problems, "version is required")
	}
	for digit := range t.BalanceClasses {
		if len(digit) != 1 || digit[0] < '0' || digit[0] > '9' {
			problems = append(problems, fmt.Sprintf("balance class key %q is not a single digit", digit))
		}
	}
	for prefix := range t.Categories {
		if len(prefix) != 2 || !ledger.ValidAccountCode(prefix+"0000") {
			problems = append(problems, fmt.Sprintf("category key %q is not a two-digit prefix", prefix))
		}
	}
	for _, code := range t.Totalizer4Codes {
		if !ledger.ValidAccountCode(code) {
			problems = append(problems, fmt.Sprintf("totalizer-4 code %q is not a 6-digit code", code))
		}
	}
	rc := t.RatioCodes
	for name, code := range map[string]string{
		"cash": rc.Cash, "deposits": rc.Deposits, "loans": rc.Loans,
		"assets": rc.Assets, "liabilities": rc.Liabilities,
	} {
		if code != "" && !ledger.ValidAccountCode(code) {
			problems = append(problems, fmt.Sprintf("ratio code %s=%q is not a 6-digit code", name, code))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid taxonomy table: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (t *Table) index() {
	t.special = make(map[string]struct{}, len(t.Totalizer4Codes))
	for _, code := range t.Totalizer4Codes {
		t.special[code] = struct{}{}
	}
}

// Classify derives all tags for a code. It never fails: unknown inputs land
// in the Other/Leaf buckets.
func (t *Table) Classify(code string) Tags {
	level := t.Rollup(code)
	return Tags{
		BalanceClass: t.BalanceClass(code),
		RollupLevel:  level,
		Category:     t.Category(code),
		ViewTag:      View(level),
	}
}

// BalanceClass maps the leading digit of code.
func (t *Table) BalanceClass(code string) BalanceClass {
	if code == "" {
		return OtherClass
	}
	if c, ok := t.BalanceClasses[code[:1]]; ok {
		return c
	}
	return OtherClass
}

// Rollup tests the most aggregated condition first; the first match wins.
func (t *Table) Rollup(code string) RollupLevel {
	if code == "" {
		return Leaf
	}
	switch {
	case t.isSpecial(code):
		return Totalizer4
	case strings.HasSuffix(code, "00000"):
		return Totalizer1
	case strings.HasSuffix(code, "0000"):
		return Totalizer2
	case strings.HasSuffix(code, "000"):
		return Totalizer3
	default:
		return Leaf
	}
}

// Category maps the two-digit prefix of code, defaulting to OtherCategory.
func (t *Table) Category(code string) string {
	if len(code) < 2 {
		return OtherCategory
	}
	if name, ok := t.Categories[code[:2]]; ok {
		return name
	}
	return OtherCategory
}

// View collapses a rollup level into a view tag.
func View(level RollupLevel) ViewTag {
	switch level {
	case Totalizer1, Totalizer2:
		return Macro
	case Totalizer3, Totalizer4:
		return Subtotal
	default:
		return OtherView
	}
}

// isSpecial falls back to a scan for tables built without Parse.
func (t *Table) isSpecial(code string) bool {
	if t.special != nil {
		_, ok := t.special[code]
		return ok
	}
	for _, c := range t.Totalizer4Codes {
		if c == code {
			return true
		}
	}
	return false
}

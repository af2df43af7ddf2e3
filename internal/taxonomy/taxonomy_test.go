package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Loads(t *testing.T) {
	table := Default()
	assert.NotEmpty(t, table.Version)
	assert.Len(t, table.Categories, 38)
	assert.Equal(t, "110000", table.RatioCodes.Cash)
}

func TestClassify(t *testing.T) {
	table := Default()

	tests := []struct {
		code string
		want Tags
	}{
		{
			code: "110000",
			want: Tags{BalanceClass: Asset, RollupLevel: Totalizer1, Category: "Cash and bank deposits", ViewTag: Macro},
		},
		{
			code: "210000",
			want: Tags{BalanceClass: Asset, RollupLevel: Totalizer1, Category: "Intangible assets", ViewTag: Macro},
		},
		{
			code: "300000",
			want: Tags{BalanceClass: Liability, RollupLevel: Totalizer1, Category: OtherCategory, ViewTag: Macro},
		},
		{
			code: "311000",
			want: Tags{BalanceClass: Liability, RollupLevel: Totalizer3, Category: "Deposits", ViewTag: Subtotal},
		},
		{
			code: "131000",
			want: Tags{BalanceClass: Asset, RollupLevel: Totalizer3, Category: "Loans", ViewTag: Subtotal},
		},
		{
			code: "450000",
			want: Tags{BalanceClass: Equity, RollupLevel: Totalizer2, Category: "Unappropriated results", ViewTag: Macro},
		},
		{
			code: "711234",
			want: Tags{BalanceClass: OffBalance, RollupLevel: Leaf, Category: "Off-balance debit items", ViewTag: OtherView},
		},
		{
			code: "991234",
			want: Tags{BalanceClass: OtherClass, RollupLevel: Leaf, Category: OtherCategory, ViewTag: OtherView},
		},
		{
			code: "",
			want: Tags{BalanceClass: OtherClass, RollupLevel: Leaf, Category: OtherCategory, ViewTag: OtherView},
		},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Classify(tt.code))
		})
	}
}

func TestRollup_MostAggregatedWins(t *testing.T) {
	table := Default()
	assert.Equal(t, Totalizer1, table.Rollup("300000"))
	assert.Equal(t, Totalizer1, table.Rollup("000000"))
	assert.Equal(t, Totalizer2, table.Rollup("310000"))
	assert.Equal(t, Totalizer3, table.Rollup("311000"))
	assert.Equal(t, Leaf, table.Rollup("311100"))
}

func TestRollup_SpecialCodesPromoted(t *testing.T) {
	table, err := Parse([]byte(`
version: test
balance_classes: {"1": Asset}
categories: {"13": Loans}
totalizer4_codes: ["131101", "130000"]
`))
	require.NoError(t, err)

	assert.Equal(t, Totalizer4, table.Rollup("131101"))
	assert.Equal(t, Subtotal, table.Classify("131101").ViewTag)
	// The special set is checked before the trailing-zero rules.
	assert.Equal(t, Totalizer4, table.Rollup("130000"))
	assert.Equal(t, Leaf, table.Rollup("131102"))
}

func TestRollup_TableWithoutParse(t *testing.T) {
	table := &Table{Version: "literal", Totalizer4Codes: []string{"131101"}}
	assert.Equal(t, Totalizer4, table.Rollup("131101"))
	assert.Equal(t, OtherClass, table.BalanceClass("131101"))
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing version":   `categories: {"11": Cash}`,
		"bad category key":  "version: x\ncategories: {\"1\": Cash}",
		"bad class key":     "version: x\nbalance_classes: {\"12\": Asset}",
		"bad special code":  "version: x\ntotalizer4_codes: [\"12\"]",
		"bad ratio code":    "version: x\nratio_codes: {cash: \"11\"}",
		"malformed yaml":    "version: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: v2\ncategories: {\"11\": Caja}\n"), 0o600))

	table, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", table.Version)
	assert.Equal(t, "Caja", table.Category("110000"))

	_, err = LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

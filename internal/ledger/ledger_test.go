package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{in: "202401", want: Period{Year: 2024, Month: time.January}},
		{in: "202412", want: Period{Year: 2024, Month: time.December}},
		{in: "20241", wantErr: true},
		{in: "2024011", wantErr: true},
		{in: "202413", wantErr: true},
		{in: "202400", wantErr: true},
		{in: "2024a1", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriod(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.Key())
		})
	}
}

func TestPeriod_Prev(t *testing.T) {
	assert.Equal(t, "202412", MustParsePeriod("202501").Prev().Key())
	assert.Equal(t, "202402", MustParsePeriod("202403").Prev().Key())
}

func TestPeriod_DisplayDoesNotSortButKeyDoes(t *testing.T) {
	dec := MustParsePeriod("202412")
	jan := MustParsePeriod("202501")

	assert.Equal(t, "12-2024", dec.Display())
	assert.Equal(t, "01-2025", jan.Display())
	assert.True(t, jan.Display() < dec.Display())
	assert.True(t, dec.Key() < jan.Key())
	assert.True(t, dec.Before(jan))

	ps := []Period{jan, dec, MustParsePeriod("202406")}
	SortPeriods(ps)
	assert.Equal(t, []string{"202406", "202412", "202501"}, []string{ps[0].Key(), ps[1].Key(), ps[2].Key()})
}

func TestPeriod_EndDate(t *testing.T) {
	assert.Equal(t, "2024-02-29", MustParsePeriod("202402").EndDate().String())
	assert.Equal(t, "2024-12-31", MustParsePeriod("202412").EndDate().String())
}

func TestPeriod_JSON(t *testing.T) {
	b, err := json.Marshal(MustParsePeriod("202407"))
	require.NoError(t, err)
	assert.Equal(t, `"202407"`, string(b))

	var p Period
	require.NoError(t, json.Unmarshal(b, &p))
	assert.Equal(t, MustParsePeriod("202407"), p)
}

func TestRecord_Net(t *testing.T) {
	r := Record{Debit: decimal.NewFromInt(1000), Credit: decimal.NewFromInt(250)}
	assert.True(t, r.Net().Equal(decimal.NewFromInt(750)))
}

func TestValidAccountCode(t *testing.T) {
	assert.True(t, ValidAccountCode("110000"))
	assert.False(t, ValidAccountCode("11000"))
	assert.False(t, ValidAccountCode("11000A"))
	assert.False(t, ValidAccountCode(" 11000"))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 25.0, Percent(decimal.NewFromInt(200), decimal.NewFromInt(800)))
	assert.Equal(t, 0.0, Percent(decimal.NewFromInt(200), decimal.Zero))
	assert.Equal(t, 25.0, Change(decimal.NewFromInt(1000), decimal.NewFromInt(800)))
	assert.Equal(t, 0.0, Change(decimal.NewFromInt(1000), decimal.Zero))
	assert.Equal(t, 50.0, Change(decimal.NewFromInt(-100), decimal.NewFromInt(-200)))
}

package extract

import (
	"bytes"
	"strings"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// FieldCount is the number of positional columns in an extract line:
// entity id, entity name, period, account code, account label, debit, credit.
const FieldCount = 7

// MaxLineLen bounds a single extract line. Longer lines are dropped whole.
const MaxLineLen = 1024 * 1024

const (
	colEntityID = iota
	colEntityName
	colPeriod
	colAccountCode
	colAccountLabel
	colDebit
	colCredit
)

// Stats counts what the parser kept and what it dropped.
type Stats struct {
	Lines              int `json:"lines"`
	Records            int `json:"records"`
	SkippedFieldCount  int `json:"skipped_field_count"`
	SkippedPeriod      int `json:"skipped_period"`
	SkippedAccountCode int `json:"skipped_account_code"`
	SkippedEntityID    int `json:"skipped_entity_id"`
	SkippedOversize    int `json:"skipped_oversize"`
	ZeroedAmounts      int `json:"zeroed_amounts"`
}

// Skipped returns the number of dropped lines.
func (s Stats) Skipped() int {
	return s.SkippedFieldCount + s.SkippedPeriod + s.SkippedAccountCode +
		s.SkippedEntityID + s.SkippedOversize
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Lines += o.Lines
	s.Records += o.Records
	s.SkippedFieldCount += o.SkippedFieldCount
	s.SkippedPeriod += o.SkippedPeriod
	s.SkippedAccountCode += o.SkippedAccountCode
	s.SkippedEntityID += o.SkippedEntityID
	s.SkippedOversize += o.SkippedOversize
	s.ZeroedAmounts += o.ZeroedAmounts
}

// Parse decodes one raw Latin-1 extract into ledger records.
// Garbled lines are skipped and counted; Parse never fails.
func Parse(raw []byte) ([]ledger.Record, Stats) {
	var stats Stats

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		// ISO-8859-1 maps every byte, so this only guards against decoder changes.
		decoded = raw
	}

	records := make([]ledger.Record, 0, bytes.Count(decoded, []byte{'\n'})+1)

	for rest := decoded; len(rest) > 0; {
		var chunk []byte
		chunk, rest, _ = bytes.Cut(rest, []byte{'\n'})
		if len(chunk) > MaxLineLen {
			stats.Lines++
			stats.SkippedOversize++
			continue
		}

		line := strings.TrimRight(string(chunk), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Lines++

		fields := strings.Split(line, "\t")
		if len(fields) != FieldCount {
			stats.SkippedFieldCount++
			continue
		}

		entityID := Clean(fields[colEntityID])
		if entityID == "" {
			stats.SkippedEntityID++
			continue
		}

		period, err := ledger.ParsePeriod(Clean(fields[colPeriod]))
		if err != nil {
			stats.SkippedPeriod++
			continue
		}

		code := Clean(fields[colAccountCode])
		if !ledger.ValidAccountCode(code) {
			stats.SkippedAccountCode++
			continue
		}

		debit, ok := parseAmount(fields[colDebit])
		if !ok {
			stats.ZeroedAmounts++
		}
		credit, ok := parseAmount(fields[colCredit])
		if !ok {
			stats.ZeroedAmounts++
		}

		records = append(records, ledger.Record{
			EntityID:     entityID,
			EntityName:   fields[colEntityName],
			Period:       period,
			AccountCode:  code,
			AccountLabel: fields[colAccountLabel],
			Debit:        debit,
			Credit:       credit,
		})
		stats.Records++
	}

	return records, stats
}

// Clean strips surrounding whitespace and every double-quote character.
func Clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}

// parseAmount parses a reported amount. Unparsable values are zero.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = Clean(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err == nil {
		return d, true
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		if d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1)); err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}

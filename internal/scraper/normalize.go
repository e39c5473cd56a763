package scraper

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"island-tracker/internal/domain"
)

// minCells is the column count of the source's stats table:
// label, peak, gain, gain %, average, avg gain, avg gain %, earnings.
const minCells = 8

type RawCell struct {
	Text       string `json:"text"`
	SortKey    string `json:"sort"`
	HasSortKey bool   `json:"hasSort"`
}

// RawRow is one <tr> as read from the rendered page, before any typing.
type RawRow struct {
	Classes    []string  `json:"classes"`
	FontWeight string    `json:"fontWeight"`
	Cells      []RawCell `json:"cells"`
}

// IsAggregateRow reports whether row is the trailing totals row rather than data.
func IsAggregateRow(row RawRow) bool {
	if slices.Contains(row.Classes, "no-sort") {
		return true
	}
	if fw := strings.TrimSpace(row.FontWeight); fw == "bold" || fw == "700" {
		return true
	}
	if len(row.Cells) == 0 {
		return true
	}
	label := strings.TrimSpace(row.Cells[0].Text)
	return label == "" || strings.Contains(label, "Total") || strings.Contains(label, "Sum")
}

type rowValues struct {
	label          string
	peak           int
	gain           int
	gainPercent    float64
	average        int
	avgGain        int
	avgGainPercent float64
	earnings       string
}

func normalizeRow(row RawRow) (rowValues, bool) {
	if len(row.Cells) < minCells || IsAggregateRow(row) {
		return rowValues{}, false
	}
	c := row.Cells
	return rowValues{
		label:          strings.TrimSpace(c[0].Text),
		peak:           parseInt(c[1].value()),
		gain:           parseInt(c[2].value()),
		gainPercent:    parsePercent(c[3].value()),
		average:        parseInt(c[4].value()),
		avgGain:        parseInt(c[5].value()),
		avgGainPercent: parsePercent(c[6].value()),
		earnings:       strings.TrimSpace(c[7].Text),
	}, true
}

// value prefers the machine sort key; the displayed text carries formatting.
func (c RawCell) value() string {
	if c.HasSortKey && strings.TrimSpace(c.SortKey) != "" {
		return c.SortKey
	}
	return c.Text
}

var numberCleaner = strings.NewReplacer(",", "", "+", "", "%", "", " ", "", "\u00a0", "", "\u2212", "-")

func cleanNumber(s string) string {
	return numberCleaner.Replace(strings.TrimSpace(s))
}

// parseInt is lenient: malformed input yields 0 instead of failing the row.
func parseInt(s string) int {
	s = cleanNumber(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= math.MinInt64 && f < math.MaxInt64 {
		return int(f)
	}
	return 0
}

func parsePercent(s string) float64 {
	f, err := strconv.ParseFloat(cleanNumber(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func NormalizeDaily(rows []RawRow) []domain.DailyRecord {
	out := make([]domain.DailyRecord, 0, len(rows))
	for _, row := range rows {
		v, ok := normalizeRow(row)
		if !ok {
			continue
		}
		out = append(out, domain.DailyRecord{
			Date:              v.label,
			Peak:              v.peak,
			Gain:              v.gain,
			GainPercent:       v.gainPercent,
			Average:           v.average,
			AvgGain:           v.avgGain,
			AvgGainPercent:    v.avgGainPercent,
			EstimatedEarnings: v.earnings,
		})
	}
	return out
}

func NormalizeMonthly(rows []RawRow) []domain.MonthlyRecord {
	out := make([]domain.MonthlyRecord, 0, len(rows))
	for _, row := range rows {
		v, ok := normalizeRow(row)
		if !ok {
			continue
		}
		out = append(out, domain.MonthlyRecord{
			Month:             v.label,
			Peak:              v.peak,
			Gain:              v.gain,
			GainPercent:       v.gainPercent,
			Average:           v.average,
			AvgGain:           v.avgGain,
			AvgGainPercent:    v.avgGainPercent,
			EstimatedEarnings: v.earnings,
		})
	}
	return out
}

package domain

import (
	"slices"
	"strings"
	"time"
)

var fullDateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"Mon, Jan 2, 2006",
	"Monday, January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"2006-01-02",
	"01/02/2006",
}

var monthLayouts = []string{
	"Jan 2006",
	"January 2006",
	"Jan, 2006",
	"2006-01",
	"01/2006",
}

// Labels rendered without a year ("Mon, Jan 2") are placed in the year of ref,
// or the year before when that would land in the future.
var yearlessLayouts = []string{
	"Jan 2",
	"January 2",
	"Mon, Jan 2",
	"Monday, January 2",
}

// ParseLabel turns a date or month label as the source displays it into a
// time in ref's location.
func ParseLabel(label string, ref time.Time) (time.Time, bool) {
	label = strings.Join(strings.Fields(label), " ")
	if label == "" {
		return time.Time{}, false
	}
	loc := ref.Location()

	for _, layout := range fullDateLayouts {
		if t, err := time.ParseInLocation(layout, label, loc); err == nil {
			return t, true
		}
	}
	for _, layout := range monthLayouts {
		if t, err := time.ParseInLocation(layout, label, loc); err == nil {
			return t, true
		}
	}
	for _, layout := range yearlessLayouts {
		t, err := time.ParseInLocation(layout, label, loc)
		if err != nil {
			continue
		}
		t = time.Date(ref.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		if t.After(ref.AddDate(0, 0, 1)) {
			t = t.AddDate(-1, 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

type datedIndex struct {
	idx int
	at  time.Time
	ok  bool
}

// sortByLabel returns an index permutation ordering labels most-recent-first.
// Labels that do not parse keep their relative order after the dated ones.
func sortByLabel(labels []string, ref time.Time) []int {
	keys := make([]datedIndex, len(labels))
	for i, l := range labels {
		at, ok := ParseLabel(l, ref)
		keys[i] = datedIndex{idx: i, at: at, ok: ok}
	}
	slices.SortStableFunc(keys, func(a, b datedIndex) int {
		switch {
		case a.ok && !b.ok:
			return -1
		case !a.ok && b.ok:
			return 1
		case !a.ok && !b.ok:
			return 0
		}
		return b.at.Compare(a.at)
	})
	order := make([]int, len(keys))
	for i, k := range keys {
		order[i] = k.idx
	}
	return order
}

// SortDaily returns a copy of records ordered most-recent-first by parsed date.
// The delivery order of the source is not trusted.
func SortDaily(records []DailyRecord, ref time.Time) []DailyRecord {
	labels := make([]string, len(records))
	for i, r := range records {
		labels[i] = r.Date
	}
	out := make([]DailyRecord, 0, len(records))
	for _, i := range sortByLabel(labels, ref) {
		out = append(out, records[i])
	}
	return out
}

// SortMonthly is SortDaily for month aggregates.
func SortMonthly(records []MonthlyRecord, ref time.Time) []MonthlyRecord {
	labels := make([]string, len(records))
	for i, r := range records {
		labels[i] = r.Month
	}
	out := make([]MonthlyRecord, 0, len(records))
	for _, i := range sortByLabel(labels, ref) {
		out = append(out, records[i])
	}
	return out
}

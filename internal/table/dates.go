package table

import (
	"strings"
	"time"
)

// dateLayouts are tried in order for string cells
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"01/02/2006",
	"01/02/2006 15:04:05",
	"1/2/2006",
	"02-01-2006",
	"02.01.2006",
	"2-Jan-2006",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01",
}

// ParseDate converts a single cell to a UTC time. Numbers are not treated as
// dates.
func ParseDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return x.UTC(), !x.IsZero()
	case string:
		s := strings.TrimSpace(x)
		if s == "" || isNAToken(s) {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// ParseDates converts a column cell by cell, coercing anything unparseable to
// invalid. valid[i] reports whether dates[i] holds a real value.
func ParseDates(values []any) (dates []time.Time, valid []bool) {
	dates = make([]time.Time, len(values))
	valid = make([]bool, len(values))
	for i, v := range values {
		dates[i], valid[i] = ParseDate(v)
	}
	return dates, valid
}

// DateSpan returns the earliest and latest valid date and how many were valid
func DateSpan(dates []time.Time, valid []bool) (minDate, maxDate time.Time, n int) {
	for i, d := range dates {
		if !valid[i] {
			continue
		}
		if n == 0 || d.Before(minDate) {
			minDate = d
		}
		if n == 0 || d.After(maxDate) {
			maxDate = d
		}
		n++
	}
	return minDate, maxDate, n
}

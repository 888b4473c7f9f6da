package table

import (
	"fmt"
	"strconv"
	"strings"
)

// naTokens are cell texts read as missing values
var naTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
	"None": {},
	"#N/A": {},
}

func isNAToken(s string) bool {
	_, ok := naTokens[s]
	return ok
}

// InferColumn converts raw cell text into typed values. The whole column is
// typed together: integers when every present cell is an integer, floats when
// every present cell is numeric, bools when every present cell is a boolean
// literal, strings otherwise. Missing cells become nil.
func InferColumn(cells []string) []any {
	values := make([]any, len(cells))
	present := make([]bool, len(cells))
	allInt, allFloat, allBool := true, true, true

	for i, raw := range cells {
		s := strings.TrimSpace(raw)
		if isNAToken(s) {
			continue
		}
		present[i] = true
		if allInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBoolLiteral(s); !ok {
				allBool = false
			}
		}
	}

	for i, raw := range cells {
		if !present[i] {
			continue
		}
		s := strings.TrimSpace(raw)
		switch {
		case allInt:
			n, _ := strconv.ParseInt(s, 10, 64)
			values[i] = n
		case allFloat:
			f, _ := strconv.ParseFloat(s, 64)
			values[i] = f
		case allBool:
			b, _ := parseBoolLiteral(s)
			values[i] = b
		default:
			values[i] = raw
		}
	}
	return values
}

func parseBoolLiteral(s string) (bool, bool) {
	switch s {
	case "True", "true", "TRUE":
		return true, true
	case "False", "false", "FALSE":
		return false, true
	}
	return false, false
}

// uniqueHeader makes header names unique by suffixing repeats with .1, .2, ...
func uniqueHeader(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, name := range header {
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		candidate := name
		for {
			n, dup := seen[candidate]
			if !dup {
				break
			}
			seen[candidate] = n + 1
			candidate = fmt.Sprintf("%s.%d", name, n+1)
		}
		seen[candidate] = 0
		out[i] = candidate
	}
	return out
}

// fromGrid builds a table from a header and string rows, padding short rows
func fromGrid(header []string, rows [][]string) (*Table, error) {
	names := uniqueHeader(header)
	t := New(len(rows))
	for j, name := range names {
		cells := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				cells[i] = row[j]
			}
		}
		if err := t.AddColumn(name, InferColumn(cells)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

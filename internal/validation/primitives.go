package validation

import (
	"fmt"
	"strings"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
)

// canonicalNames maps lowercase spellings of known dimension columns to the
// display form the analytics pipelines expect.
var canonicalNames = map[string]string{
	"market":       "Market",
	"channel":      "Channel",
	"region":       "Region",
	"category":     "Category",
	"subcategory":  "SubCategory",
	"sub-category": "SubCategory",
	"brand":        "Brand",
	"ppg":          "PPG",
	"variant":      "Variant",
	"packtype":     "PackType",
	"pack type":    "PackType",
	"pack-type":    "PackType",
	"packsize":     "PackSize",
	"pack size":    "PackSize",
	"pack-size":    "PackSize",
	"fiscal year":  "Fiscal Year",
	"fiscalyear":   "Fiscal Year",
	"fiscal-year":  "Fiscal Year",
	"date":         "Date",
}

// CanonicalName returns the display form of a recognised dimension column
func CanonicalName(name string) (string, bool) {
	canonical, ok := canonicalNames[strings.ToLower(name)]
	return canonical, ok
}

// CleanColumns trims surrounding whitespace from column names in place. A name
// is left alone when its trimmed form already exists.
func CleanColumns(tbl *table.Table, rep *report.Report, check string) {
	renamed := renameColumns(tbl, rep, check, func(name string) (string, bool) {
		trimmed := strings.TrimSpace(name)
		return trimmed, trimmed != name
	})
	if len(renamed) > 0 {
		rep.Add(report.StatusPass, check, fmt.Sprintf("renamed columns %q", renamed))
	}
}

// StandardizeColumns rewrites known case and spacing variants of dimension
// column names to their canonical form.
func StandardizeColumns(tbl *table.Table, rep *report.Report) {
	const check = "case_standardization"
	renamed := renameColumns(tbl, rep, check, func(name string) (string, bool) {
		canonical, ok := CanonicalName(name)
		return canonical, ok && canonical != name
	})
	if len(renamed) > 0 {
		rep.Add(report.StatusPass, check, fmt.Sprintf("standardized column names: %q", renamed))
	}
}

func renameColumns(tbl *table.Table, rep *report.Report, check string, target func(string) (string, bool)) []string {
	var renamed []string
	for _, name := range tbl.Names() {
		to, ok := target(name)
		if !ok {
			continue
		}
		if tbl.Has(to) {
			rep.AddColumn(report.StatusWarn, check, name, fmt.Sprintf("not renamed: %q already exists", to))
			continue
		}
		tbl.Rename(name, to)
		renamed = append(renamed, name)
	}
	return renamed
}

// CheckMissing reports every column with missing values. Columns listed in
// critical fail; all others warn.
func CheckMissing(tbl *table.Table, rep *report.Report, check string, critical []string) {
	crit := make(map[string]struct{}, len(critical))
	for _, c := range critical {
		crit[c] = struct{}{}
	}

	rows := tbl.Len()
	for _, col := range tbl.Columns() {
		n := col.MissingCount()
		if n == 0 {
			continue
		}
		pct := 0.0
		if rows > 0 {
			pct = float64(n) / float64(rows) * 100
		}
		status := report.StatusWarn
		if _, ok := crit[col.Name]; ok {
			status = report.StatusFail
		}
		rep.AddColumn(status, check, col.Name, fmt.Sprintf("%d missing (%.2f%%)", n, pct))
	}
}

// CheckTypes warns about columns whose dtype differs from the expected one.
// Columns absent from the table are skipped; required-column checks cover them.
func CheckTypes(tbl *table.Table, rep *report.Report, check string, expected []ExpectedType) {
	for _, exp := range expected {
		col, ok := tbl.Column(exp.Column)
		if !ok {
			continue
		}
		if got := col.DType(); got != exp.DType {
			rep.AddColumn(report.StatusWarn, check, exp.Column, fmt.Sprintf("found %s, expected %s", got, exp.DType))
		}
	}
}

// CheckRequired fails when any of the required columns is absent
func CheckRequired(tbl *table.Table, rep *report.Report, check string, required []string) {
	missing := missingColumns(tbl, required)
	if len(missing) == 0 {
		rep.Add(report.StatusPass, check, "all required columns present")
		return
	}
	rep.Add(report.StatusFail, check, "missing columns: "+strings.Join(missing, ", "))
}

// CheckRecords closes a rule set: fail when the table has no rows, otherwise
// pass with the row count.
func CheckRecords(tbl *table.Table, rep *report.Report, emptyCheck, emptyMessage, countCheck string) {
	if tbl.Len() == 0 {
		rep.Add(report.StatusFail, emptyCheck, emptyMessage)
		return
	}
	rep.Add(report.StatusPass, countCheck, fmt.Sprintf("%d records", tbl.Len()))
}

func missingColumns(tbl *table.Table, names []string) []string {
	var missing []string
	for _, name := range names {
		if !tbl.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func presentColumns(tbl *table.Table, names []string) []string {
	var found []string
	for _, name := range names {
		if tbl.Has(name) {
			found = append(found, name)
		}
	}
	return found
}

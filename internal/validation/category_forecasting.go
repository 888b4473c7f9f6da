package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
)

const dayLayout = "2006-01-02"

// ValidateCategoryForecasting checks a single table destined for the category
// forecasting pipeline. Missing values never fail here unless rules.Critical
// names the column.
func ValidateCategoryForecasting(tbl *table.Table, rules CategoryForecastingRules) *report.Report {
	rep := report.New()

	CleanColumns(tbl, rep, "cleanup")
	if rules.Standardize {
		StandardizeColumns(tbl, rep)
	}

	datesValid := checkForecastDates(tbl, rep, rules.DateColumn)
	checkDimensions(tbl, rep, rules.Dimensions)

	switch {
	case tbl.Has(rules.FiscalYearColumn):
		rep.Add(report.StatusPass, "fiscal_year", "")
	case datesValid:
		rep.Add(report.StatusWarn, "fiscal_year", fmt.Sprintf("will compute at runtime (start=%d)", rules.FiscalStartMonth))
	}

	CheckMissing(tbl, rep, "missing", rules.Critical)
	CheckTypes(tbl, rep, "dtype", rules.ExpectedTypes)
	CheckRecords(tbl, rep, "data_empty", "Data is empty after validations", "records_count")
	return rep
}

// checkForecastDates validates the date column and reports whether it holds at
// least one usable date.
func checkForecastDates(tbl *table.Table, rep *report.Report, dateColumn string) bool {
	col, ok := tbl.Column(dateColumn)
	if !ok {
		rep.Add(report.StatusFail, "date_column", fmt.Sprintf("'%s' not found", dateColumn))
		return false
	}

	dates, valid := table.ParseDates(col.Values)
	minDate, maxDate, n := table.DateSpan(dates, valid)
	typed := col.DType() == table.Datetime
	if n == 0 && !typed {
		rep.AddColumn(report.StatusFail, "date_column", dateColumn, "all values NaT after conversion")
		return false
	}
	rep.AddColumn(report.StatusPass, "date_column", dateColumn, "valid datetime")
	if n == 0 {
		return false
	}

	if dup := countDuplicateDates(dates, valid); dup > 0 {
		rep.AddColumn(report.StatusFail, "duplicate_dates", dateColumn, fmt.Sprintf("%d duplicates", dup))
	} else {
		rep.AddColumn(report.StatusPass, "duplicate_dates", dateColumn, "")
	}
	rep.AddColumn(report.StatusPass, "date_range", dateColumn,
		fmt.Sprintf("from %s to %s", minDate.Format(dayLayout), maxDate.Format(dayLayout)))
	return true
}

// countDuplicateDates counts valid dates that repeat an earlier valid date
func countDuplicateDates(dates []time.Time, valid []bool) int {
	seen := make(map[time.Time]struct{}, len(dates))
	dup := 0
	for i, d := range dates {
		if !valid[i] {
			continue
		}
		key := d.UTC()
		if _, ok := seen[key]; ok {
			dup++
			continue
		}
		seen[key] = struct{}{}
	}
	return dup
}

func checkDimensions(tbl *table.Table, rep *report.Report, candidates []string) {
	var found []string
	names := tbl.Names()
	for _, want := range candidates {
		if tbl.Has(want) {
			found = append(found, want)
			continue
		}
		for _, name := range names {
			if strings.EqualFold(name, want) {
				found = append(found, name)
				break
			}
		}
	}

	if len(found) > 0 {
		rep.Add(report.StatusPass, "dimension_check", "found "+strings.Join(found, ", "))
		return
	}
	rep.Add(report.StatusFail, "dimension_check", "need at least one of "+strings.Join(candidates, ", "))
}

package validation

import (
	"fmt"
	"strings"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
)

// ValidatePromoIntensity checks a single table destined for the promotional
// intensity pipeline. Nulls in the required columns fail the report.
func ValidatePromoIntensity(tbl *table.Table, rules PromoIntensityRules) *report.Report {
	rep := report.New()

	CleanColumns(tbl, rep, "cleanup")
	if rules.Standardize {
		StandardizeColumns(tbl, rep)
	}

	CheckRequired(tbl, rep, "required_cols", rules.Required)
	checkGranularity(tbl, rep, rules)
	checkAggregators(tbl, rep, rules.Aggregators)
	for _, price := range rules.PriceColumns {
		checkPriceColumn(tbl, rep, price)
	}
	checkPromotionIndicator(tbl, rep, rules.PromoKeywords)
	checkPromoDateRange(tbl, rep, rules.DateColumn)

	CheckMissing(tbl, rep, "missing", rules.Required)
	CheckTypes(tbl, rep, "dtype", rules.ExpectedTypes)
	CheckRecords(tbl, rep, "data_empty", "Dataset is empty", "records_count")
	return rep
}

// checkGranularity prefers a daily Date column over Year and Week when both exist
func checkGranularity(tbl *table.Table, rep *report.Report, rules PromoIntensityRules) {
	switch {
	case tbl.Has(rules.DateColumn):
		rep.Add(report.StatusPass, "granularity", "daily")
	case tbl.Has(rules.YearColumn) && tbl.Has(rules.WeekColumn):
		rep.Add(report.StatusPass, "granularity", "weekly")
	default:
		rep.Add(report.StatusFail, "granularity",
			fmt.Sprintf("need '%s' or both '%s' & '%s'", rules.DateColumn, rules.YearColumn, rules.WeekColumn))
	}
}

func checkAggregators(tbl *table.Table, rep *report.Report, aggregators []string) {
	if found := presentColumns(tbl, aggregators); len(found) > 0 {
		rep.Add(report.StatusPass, "aggregators", "found columns: "+strings.Join(found, ", "))
		return
	}
	rep.Add(report.StatusWarn, "aggregators",
		"none of the recommended aggregator columns found: "+strings.Join(aggregators, ", "))
}

func checkPriceColumn(tbl *table.Table, rep *report.Report, name string) {
	col, ok := tbl.Column(name)
	if !ok {
		rep.AddColumn(report.StatusWarn, name, name, "column missing; will need to be computed later")
		return
	}
	if dtype := col.DType(); !dtype.IsNumeric() {
		rep.AddColumn(report.StatusWarn, name, name, fmt.Sprintf("column found but not numeric (type: %s)", dtype))
		return
	}
	rep.AddColumn(report.StatusPass, name, name, "numeric data type confirmed")
}

func checkPromotionIndicator(tbl *table.Table, rep *report.Report, keywords []string) {
	for _, name := range tbl.Names() {
		lower := strings.ToLower(name)
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				rep.AddColumn(report.StatusPass, "promotion_indicator", name, "found promotion flag or discount column")
				return
			}
		}
	}
	rep.Add(report.StatusWarn, "promotion_indicator", "no promotion indicator found; will need to be derived")
}

// checkPromoDateRange reports the inclusive day span of the valid dates.
// Nothing is emitted when the column is absent or holds no valid date.
func checkPromoDateRange(tbl *table.Table, rep *report.Report, dateColumn string) {
	col, ok := tbl.Column(dateColumn)
	if !ok {
		return
	}
	dates, valid := table.ParseDates(col.Values)
	minDate, maxDate, n := table.DateSpan(dates, valid)
	if n == 0 {
		return
	}
	from := civilDay(minDate)
	to := civilDay(maxDate)
	days := int(to.Sub(from).Hours()/24) + 1
	rep.AddColumn(report.StatusPass, "date_range", dateColumn,
		fmt.Sprintf("from %s to %s (%d days)", from.Format(dayLayout), to.Format(dayLayout), days))
}

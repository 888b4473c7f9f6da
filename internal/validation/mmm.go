package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
)

const (
	tagMedia = "media"
	tagSales = "sales"
)

// ValidateMMM checks the media and sales tables of the marketing-mix pipeline,
// each in its own tagged section, then compares their time periods.
func ValidateMMM(media, sales *table.Table, rules MMMRules) *report.Report {
	rep := report.New()

	validateDataset(media, rep, tagMedia, rules.Media, rules)
	validateDataset(sales, rep, tagSales, rules.Sales, rules)

	if media.Len() > 0 && sales.Len() > 0 {
		checkTimeAlignment(media, sales, rep, rules)
	}
	return rep
}

func validateDataset(tbl *table.Table, rep *report.Report, tag string, ds DatasetRules, rules MMMRules) {
	rep.Add(report.StatusPass, "section", tag)

	CleanColumns(tbl, rep, "cleanup_"+tag)
	CheckMissing(tbl, rep, "missing_"+tag, ds.NonNull)
	CheckTypes(tbl, rep, "dtype_"+tag, ds.ExpectedTypes)
	CheckRequired(tbl, rep, "required_"+tag, ds.Required)
	CheckRecords(tbl, rep, "data_empty_"+tag, "Dataset is empty", "records_count_"+tag)

	if tbl.Has(rules.YearColumn) && tbl.Has(rules.MonthColumn) {
		checkTimeCoverage(tbl, rep, tag, rules)
	}
}

func checkTimeCoverage(tbl *table.Table, rep *report.Report, tag string, rules MMMRules) {
	check := "time_coverage_" + tag
	yearCol, _ := tbl.Column(rules.YearColumn)
	monthCol, _ := tbl.Column(rules.MonthColumn)

	years := make(map[string]struct{})
	for _, v := range yearCol.Values {
		if table.IsMissing(v) {
			continue
		}
		years[cellText(v)] = struct{}{}
	}

	months := make(map[int64]struct{})
	for i, v := range monthCol.Values {
		m, err := cellInt(v)
		if err != nil {
			rep.Add(report.StatusWarn, check, fmt.Sprintf("Error analyzing time coverage: %s row %d: %v", rules.MonthColumn, i+1, err))
			return
		}
		months[m] = struct{}{}
	}

	yearList := make([]string, 0, len(years))
	for y := range years {
		yearList = append(yearList, y)
	}
	sort.Slice(yearList, func(i, j int) bool { return naturalLess(yearList[i], yearList[j]) })

	monthList := make([]int64, 0, len(months))
	for m := range months {
		monthList = append(monthList, m)
	}
	sort.Slice(monthList, func(i, j int) bool { return monthList[i] < monthList[j] })
	monthText := make([]string, len(monthList))
	for i, m := range monthList {
		monthText[i] = fmt.Sprint(m)
	}

	rep.Add(report.StatusPass, check,
		fmt.Sprintf("Years: [%s], Months: [%s]", strings.Join(yearList, ", "), strings.Join(monthText, ", ")))
}

type period struct {
	year  string
	month string
}

func (p period) String() string {
	return fmt.Sprintf("(%s, %s)", p.year, p.month)
}

func periodLess(a, b period) bool {
	if a.year != b.year {
		return naturalLess(a.year, b.year)
	}
	return naturalLess(a.month, b.month)
}

// periods collects the distinct (year, month) pairs of a table. Rows with a
// missing year or month are skipped.
func periods(tbl *table.Table, rules MMMRules, tag string) (map[period]struct{}, error) {
	yearCol, ok := tbl.Column(rules.YearColumn)
	if !ok {
		return nil, fmt.Errorf("%s dataset has no '%s' column", tag, rules.YearColumn)
	}
	monthCol, ok := tbl.Column(rules.MonthColumn)
	if !ok {
		return nil, fmt.Errorf("%s dataset has no '%s' column", tag, rules.MonthColumn)
	}

	set := make(map[period]struct{})
	for i := range yearCol.Values {
		y, m := yearCol.Values[i], monthCol.Values[i]
		if table.IsMissing(y) || table.IsMissing(m) {
			continue
		}
		set[period{year: cellText(y), month: cellText(m)}] = struct{}{}
	}
	return set, nil
}

// checkTimeAlignment compares the periods covered by the two datasets. Any
// problem computing them becomes a warning rather than aborting the report.
func checkTimeAlignment(media, sales *table.Table, rep *report.Report, rules MMMRules) {
	const check = "time_alignment"

	mediaPeriods, err := periods(media, rules, tagMedia)
	if err != nil {
		rep.Add(report.StatusWarn, check, "Error checking time alignment: "+err.Error())
		return
	}
	salesPeriods, err := periods(sales, rules, tagSales)
	if err != nil {
		rep.Add(report.StatusWarn, check, "Error checking time alignment: "+err.Error())
		return
	}

	mediaOnly := difference(mediaPeriods, salesPeriods)
	salesOnly := difference(salesPeriods, mediaPeriods)
	if len(mediaOnly) == 0 && len(salesOnly) == 0 {
		rep.Add(report.StatusPass, check, "Time periods match between datasets")
		return
	}

	var parts []string
	if len(mediaOnly) > 0 {
		parts = append(parts, "Periods in media but not in sales: "+examples(mediaOnly, rules.AlignmentExamples))
	}
	if len(salesOnly) > 0 {
		parts = append(parts, "Periods in sales but not in media: "+examples(salesOnly, rules.AlignmentExamples))
	}
	rep.Add(report.StatusWarn, check, strings.Join(parts, "; "))
}

func difference(a, b map[period]struct{}) []period {
	var out []period
	for p := range a {
		if _, ok := b[p]; !ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return periodLess(out[i], out[j]) })
	return out
}

func examples(ps []period, limit int) string {
	if limit <= 0 {
		limit = 1
	}
	shown := ps
	if len(shown) > limit {
		shown = shown[:limit]
	}
	text := make([]string, len(shown))
	for i, p := range shown {
		text[i] = p.String()
	}
	out := strings.Join(text, ", ")
	if extra := len(ps) - len(shown); extra > 0 {
		out += fmt.Sprintf(" and %d more", extra)
	}
	return out
}

package exporter

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
)

// Sheet names of the XLSX export
const (
	SheetReport  = "Report"
	SheetSummary = "Summary"
)

var statusFill = map[report.Status]string{
	report.StatusPass: "#E2EFDA",
	report.StatusWarn: "#FFF2CC",
	report.StatusFail: "#F8CBAD",
}

// WriteXLSX writes a workbook with the report rows on a Report sheet and the
// verdict and per-status counts on a Summary sheet
func WriteXLSX(w io.Writer, rep *report.Report, meta Meta) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetReport); err != nil {
		return fmt.Errorf("failed to name report sheet: %w", err)
	}
	if err := writeReportSheet(f, rep); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := writeSummarySheet(f, rep, meta); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeReportSheet(f *excelize.File, rep *report.Report) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	statusStyles := make(map[report.Status]int, len(statusFill))
	for status, color := range statusFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("failed to create %s style: %w", status, err)
		}
		statusStyles[status] = id
	}

	header := make([]interface{}, len(ReportHeaders))
	for i, h := range ReportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetReport, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}
	if err := f.SetCellStyle(SheetReport, "A1", "D1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}

	for i, row := range rep.Rows() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		record := rowRecord(row)
		values := []interface{}{record[0], record[1], record[2], record[3]}
		if err := f.SetSheetRow(SheetReport, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
		if style, ok := statusStyles[row.Status]; ok {
			statusCell, _ := excelize.CoordinatesToCellName(2, i+2)
			if err := f.SetCellStyle(SheetReport, statusCell, statusCell, style); err != nil {
				return fmt.Errorf("failed to style row %d: %w", i+1, err)
			}
		}
	}

	widths := map[string]float64{"A": 28, "B": 10, "C": 60, "D": 24}
	for col, width := range widths {
		if err := f.SetColWidth(SheetReport, col, col, width); err != nil {
			return err
		}
	}
	return f.SetPanes(SheetReport, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummarySheet(f *excelize.File, rep *report.Report, meta Meta) error {
	counts := rep.Counts()
	generated := meta.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	rows := [][]interface{}{
		{"Pipeline", meta.Pipeline},
		{"Generated", generated.UTC().Format(time.RFC3339)},
		{"Verdict", Verdict(rep)},
		{"Rows", rep.Len()},
		{report.StatusPass.String(), counts[report.StatusPass]},
		{report.StatusWarn.String(), counts[report.StatusWarn]},
		{report.StatusFail.String(), counts[report.StatusFail]},
	}
	for i, values := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetSummary, cell, &values); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
	}
	return f.SetColWidth(SheetSummary, "A", "B", 24)
}

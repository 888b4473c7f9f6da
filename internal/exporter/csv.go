package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
)

// ReportHeaders is the header row of every tabular report export
var ReportHeaders = []string{"check", "status", "msg", "column"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions configures CSV writing behavior
type CSVOptions struct {
	BOMPrefix  bool // Add UTF-8 BOM for Excel compatibility
	OmitHeader bool
}

// WriteCSV writes the report rows as CSV. Dataset-level rows leave the column
// field empty.
func WriteCSV(w io.Writer, rep *report.Report, opts CSVOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if !opts.OmitHeader {
		if err := writer.Write(ReportHeaders); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, row := range rep.Rows() {
		if err := writer.Write(rowRecord(row)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func rowRecord(row report.Row) []string {
	return []string{row.Check, row.Status.String(), row.Message, row.ColumnName()}
}

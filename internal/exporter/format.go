package exporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Meta describes the validation a report came from
type Meta struct {
	Pipeline    string
	GeneratedAt time.Time
}

// ParseFormat accepts "csv" or "xlsx" in any case
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName builds a download name such as mmm_validation_20240131T120000Z.csv
func FileName(pipeline string, f Format, at time.Time) string {
	if pipeline == "" {
		pipeline = "report"
	}
	return fmt.Sprintf("%s_validation_%s.%s", pipeline, at.UTC().Format("20060102T150405Z"), f)
}

// Verdict is PASS when the report has no failing row
func Verdict(rep *report.Report) string {
	if rep.OK() {
		return "PASS"
	}
	return "FAIL"
}

// Write exports rep in format f. CSV output carries a BOM so spreadsheet tools
// detect UTF-8.
func Write(w io.Writer, f Format, rep *report.Report, meta Meta) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, rep, CSVOptions{BOMPrefix: true})
	case FormatXLSX:
		return WriteXLSX(w, rep, meta)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// WriteFile exports rep to path, creating parent directories. The format is
// taken from the extension.
func WriteFile(path string, rep *report.Report, meta Meta) error {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Write(file, f, rep, meta); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

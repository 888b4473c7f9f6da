package exporter

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
)

func sampleReport() *report.Report {
	rep := report.New()
	rep.Add(report.StatusPass, "Row count", "12 rows")
	rep.AddColumn(report.StatusWarn, "Missing values", "Sales", "2 missing, values with \"quotes\"")
	rep.AddColumn(report.StatusFail, "Price", "Price", "3 non-positive values")
	return rep
}

func TestWriteCSV(t *testing.T) {
	tests := []struct {
		name string
		opts CSVOptions
		want string
	}{
		{
			name: "plain",
			want: "check,status,msg,column\n" +
				"Row count,pass,12 rows,\n" +
				"Missing values,warn,\"2 missing, values with \"\"quotes\"\"\",Sales\n" +
				"Price,fail,3 non-positive values,Price\n",
		},
		{
			name: "with BOM and no header",
			opts: CSVOptions{BOMPrefix: true, OmitHeader: true},
			want: "\xEF\xBB\xBF" +
				"Row count,pass,12 rows,\n" +
				"Missing values,warn,\"2 missing, values with \"\"quotes\"\"\",Sales\n" +
				"Price,fail,3 non-positive values,Price\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, sampleReport(), tt.opts))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	generated := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	require.NoError(t, WriteXLSX(&buf, sampleReport(), Meta{Pipeline: "mmm", GeneratedAt: generated}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetReport, SheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(SheetReport)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, ReportHeaders, rows[0])
	assert.Equal(t, []string{"Row count", "pass", "12 rows"}, rows[1])
	assert.Equal(t, []string{"Price", "fail", "3 non-positive values", "Price"}, rows[3])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Pipeline", "mmm"},
		{"Generated", "2024-01-31T12:00:00Z"},
		{"Verdict", "FAIL"},
		{"Rows", "3"},
		{"pass", "1"},
		{"warn", "1"},
		{"fail", "1"},
	}, summary)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "csv", want: FormatCSV},
		{in: " XLSX ", want: FormatXLSX},
		{in: "pdf", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileNameAndContentType(t *testing.T) {
	at := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "mmm_validation_20240131T120000Z.csv", FileName("mmm", FormatCSV, at))
	assert.Equal(t, "report_validation_20240131T120000Z.xlsx", FileName("", FormatXLSX, at))
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
	assert.Contains(t, FormatXLSX.ContentType(), "spreadsheetml")
}

func TestVerdict(t *testing.T) {
	assert.Equal(t, "FAIL", Verdict(sampleReport()))

	ok := report.New()
	ok.Add(report.StatusWarn, "Row count", "few rows")
	assert.Equal(t, "PASS", Verdict(ok))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "nested", "out.csv")
	require.NoError(t, WriteFile(csvPath, sampleReport(), Meta{Pipeline: "mmm"}))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, utf8BOM))

	xlsxPath := filepath.Join(dir, "out.xlsx")
	require.NoError(t, WriteFile(xlsxPath, sampleReport(), Meta{Pipeline: "mmm"}))
	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	assert.NoError(t, f.Close())

	assert.Error(t, WriteFile(filepath.Join(dir, "out.txt"), sampleReport(), Meta{}))
}

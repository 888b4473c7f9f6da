package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyInput        = errors.New("no columns to parse from input")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrInvalidRecords    = errors.New("records must be a JSON array of objects")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads a comma separated table with a header row
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = string(bytes.TrimPrefix([]byte(header[0]), utf8BOM))
	}

	var rows [][]string
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if len(record) > len(header) {
			return nil, fmt.Errorf("read csv line %d: expected %d fields, saw %d", line, len(header), len(record))
		}
		rows = append(rows, record)
	}
	return fromGrid(header, rows)
}

// ReadXLSX reads the first worksheet of a workbook; the first row is the header
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyInput
	}
	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(grid) == 0 || len(grid[0]) == 0 {
		return nil, ErrEmptyInput
	}

	header := grid[0]
	rows := grid[1:]
	for i, row := range rows {
		if len(row) > len(header) {
			return nil, fmt.Errorf("read sheet %q row %d: expected %d cells, saw %d", sheets[0], i+2, len(header), len(row))
		}
	}
	return fromGrid(header, rows)
}

// ReadFile picks a reader from the file name's extension
func ReadFile(name string, r io.Reader) (*Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return ReadCSV(r)
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	case ".json":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return DecodeRecords(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// DecodeRecords decodes a JSON array of objects into a table. Columns keep the
// order in which keys are first seen; keys absent from a record are missing.
func DecodeRecords(data []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecords, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, ErrInvalidRecords
	}

	var (
		order   []string
		records []map[string]any
	)
	index := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecords, err)
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '{' {
			return nil, fmt.Errorf("%w: record %d is not an object", ErrInvalidRecords, len(records))
		}

		record := make(map[string]any)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidRecords, err)
			}
			key, _ := keyTok.(string)
			var value any
			if err := dec.Decode(&value); err != nil {
				return nil, fmt.Errorf("%w: record %d key %q: %v", ErrInvalidRecords, len(records), key, err)
			}
			if _, seen := index[key]; !seen {
				index[key] = struct{}{}
				order = append(order, key)
			}
			record[key] = value
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecords, err)
		}
		records = append(records, record)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecords, err)
	}

	return FromRecords(order, records)
}

// FromRecords builds a table from keyed records using the given column order
func FromRecords(columns []string, records []map[string]any) (*Table, error) {
	t := New(len(records))
	for _, name := range columns {
		values := make([]any, len(records))
		for i, rec := range records {
			values[i] = rec[name]
		}
		if err := t.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// FromRows builds a table from positional rows
func FromRows(columns []string, rows [][]any) (*Table, error) {
	t := New(len(rows))
	for j, name := range uniqueHeader(columns) {
		values := make([]any, len(rows))
		for i, row := range rows {
			if j < len(row) {
				values[i] = row[j]
			}
		}
		if err := t.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

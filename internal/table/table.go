package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// DType names the storage type of a column using the dataframe vocabulary the
// analytics pipelines read.
type DType string

const (
	Int64    DType = "int64"
	Float64  DType = "float64"
	Bool     DType = "bool"
	Datetime DType = "datetime64[ns]"
	Object   DType = "object"
)

// IsNumeric reports whether the dtype holds numbers. Booleans are not numeric.
func (d DType) IsNumeric() bool {
	return d == Int64 || d == Float64
}

var (
	ErrLengthMismatch  = errors.New("column length does not match table length")
	ErrDuplicateColumn = errors.New("duplicate column name")
)

// Column is a named sequence of cell values. A cell is missing when it is nil
// or a float NaN.
type Column struct {
	Name   string
	Values []any
}

// Table is an ordered collection of equally sized columns. Tables are owned by a
// single validation at a time; renames mutate the table in place.
type Table struct {
	columns []*Column
	rows    int
}

// New returns an empty table with the given row count
func New(rows int) *Table {
	if rows < 0 {
		rows = 0
	}
	return &Table{rows: rows}
}

// FromColumns builds a table from columns of equal length. Values are normalized
// so that every integer kind is stored as int64 and every float kind as float64.
func FromColumns(cols ...Column) (*Table, error) {
	rows := 0
	if len(cols) > 0 {
		rows = len(cols[0].Values)
	}
	t := New(rows)
	for _, c := range cols {
		if err := t.AddColumn(c.Name, c.Values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustFromColumns is FromColumns that panics on error. Intended for fixtures.
func MustFromColumns(cols ...Column) *Table {
	t, err := FromColumns(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// AddColumn appends a column; its length must equal the table's row count
func (t *Table) AddColumn(name string, values []any) error {
	if len(values) != t.rows {
		return fmt.Errorf("%w: column %q has %d values, table has %d rows", ErrLengthMismatch, name, len(values), t.rows)
	}
	if t.Has(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	normalized := make([]any, len(values))
	for i, v := range values {
		normalized[i] = normalizeValue(v)
	}
	t.columns = append(t.columns, &Column{Name: name, Values: normalized})
	return nil
}

// Len returns the number of rows
func (t *Table) Len() int {
	return t.rows
}

// Width returns the number of columns
func (t *Table) Width() int {
	return len(t.columns)
}

// Names returns the column names in order
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order. The returned columns are live.
func (t *Table) Columns() []*Column {
	return t.columns
}

// Column looks up a column by exact name
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Has reports whether a column with the exact name exists
func (t *Table) Has(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Rename changes a column name in place. It reports whether the column existed.
func (t *Table) Rename(from, to string) bool {
	for _, c := range t.columns {
		if c.Name == from {
			c.Name = to
			return true
		}
	}
	return false
}

// DType infers the column's storage type from its values
func (c *Column) DType() DType {
	var ints, floats, bools, times, others, nulls, nans int
	for _, v := range c.Values {
		switch x := v.(type) {
		case nil:
			nulls++
		case int64:
			ints++
		case float64:
			if math.IsNaN(x) {
				nans++
			} else {
				floats++
			}
		case bool:
			bools++
		case time.Time:
			times++
		default:
			others++
		}
	}

	present := ints + floats + bools + times + others
	missing := nulls + nans
	switch {
	case present == 0:
		if nans > 0 && nulls == 0 {
			return Float64
		}
		return Object
	case others > 0:
		return Object
	case times == present:
		return Datetime
	case bools == present:
		if missing > 0 {
			return Object
		}
		return Bool
	case ints == present && missing == 0:
		return Int64
	case ints+floats == present:
		return Float64
	default:
		return Object
	}
}

// MissingCount counts nil and NaN cells
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if IsMissing(v) {
			n++
		}
	}
	return n
}

// IsMissing reports whether a cell value counts as missing
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case *time.Time:
		return x == nil
	}
	return false
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return float64(x)
	case float32:
		return float64(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []byte:
		return string(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}

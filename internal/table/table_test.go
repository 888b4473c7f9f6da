package table

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestColumn_DType(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		values []any
		want   DType
	}{
		{"integers", []any{1, 2, 3}, Int64},
		{"integers with missing", []any{1, nil, 3}, Float64},
		{"mixed numbers", []any{1, 2.5}, Float64},
		{"floats with nan", []any{1.5, math.NaN()}, Float64},
		{"all nan", []any{math.NaN(), math.NaN()}, Float64},
		{"all nil", []any{nil, nil}, Object},
		{"bools", []any{true, false}, Bool},
		{"bools with missing", []any{true, nil}, Object},
		{"strings", []any{"a", "b"}, Object},
		{"numbers and strings", []any{1, "b"}, Object},
		{"times", []any{day, nil}, Datetime},
		{"empty", []any{}, Object},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := FromColumns(Column{Name: "c", Values: tt.values})
			require.NoError(t, err)
			col, ok := tbl.Column("c")
			require.True(t, ok)
			assert.Equal(t, tt.want, col.DType())
		})
	}
}

func TestDType_IsNumeric(t *testing.T) {
	assert.True(t, Int64.IsNumeric())
	assert.True(t, Float64.IsNumeric())
	assert.False(t, Bool.IsNumeric())
	assert.False(t, Object.IsNumeric())
	assert.False(t, Datetime.IsNumeric())
}

func TestColumn_MissingCount(t *testing.T) {
	col := &Column{Name: "x", Values: []any{nil, 1.0, math.NaN(), "", "a"}}
	assert.Equal(t, 2, col.MissingCount())
}

func TestTable_AddColumnRejectsBadShapes(t *testing.T) {
	tbl := New(2)
	require.NoError(t, tbl.AddColumn("a", []any{1, 2}))

	err := tbl.AddColumn("b", []any{1})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	err = tbl.AddColumn("a", []any{3, 4})
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestTable_Rename(t *testing.T) {
	tbl := MustFromColumns(
		Column{Name: " Brand ", Values: []any{"x"}},
		Column{Name: "PPG", Values: []any{"y"}},
	)

	assert.True(t, tbl.Rename(" Brand ", "Brand"))
	assert.False(t, tbl.Rename("absent", "other"))
	assert.Equal(t, []string{"Brand", "PPG"}, tbl.Names())
	assert.True(t, tbl.Has("Brand"))
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, 2, tbl.Width())
}

func TestReadCSV(t *testing.T) {
	input := "\ufeffDate,Brand,Volume,Price,Promo\n" +
		"2024-01-01,A,10,1.5,true\n" +
		"2024-01-08,B,NA,2,false\n"

	tbl, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Brand", "Volume", "Price", "Promo"}, tbl.Names())
	assert.Equal(t, 2, tbl.Len())

	dtypes := map[string]DType{}
	for _, c := range tbl.Columns() {
		dtypes[c.Name] = c.DType()
	}
	assert.Equal(t, Object, dtypes["Date"])
	assert.Equal(t, Object, dtypes["Brand"])
	assert.Equal(t, Float64, dtypes["Volume"])
	assert.Equal(t, Float64, dtypes["Price"])
	assert.Equal(t, Bool, dtypes["Promo"])

	volume, _ := tbl.Column("Volume")
	assert.Equal(t, int64(10), volume.Values[0])
	assert.Nil(t, volume.Values[1])
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("Channel,Brand\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, []string{"Channel", "Brand"}, tbl.Names())
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err)
}

func TestReadCSV_DuplicateHeaders(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a,a,,a\n1,2,3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a.1", "Unnamed: 2", "a.2"}, tbl.Names())
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Year", "Month", "Brand"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{2024, 1, "A"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{2024, 2}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	tbl, err := ReadXLSX(buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"Year", "Month", "Brand"}, tbl.Names())
	assert.Equal(t, 2, tbl.Len())

	year, _ := tbl.Column("Year")
	assert.Equal(t, Int64, year.DType())
	brand, _ := tbl.Column("Brand")
	assert.Equal(t, 1, brand.MissingCount())
}

func TestReadFile_UnsupportedExtension(t *testing.T) {
	_, err := ReadFile("data.parquet", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeRecords(t *testing.T) {
	data := []byte(`[
		{"Channel": "GT", "Volume": 10, "Price": 1.5},
		{"Volume": 12, "Channel": "MT", "Brand": null, "Extra": {"k": 1}}
	]`)

	tbl, err := DecodeRecords(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Channel", "Volume", "Price", "Brand", "Extra"}, tbl.Names())
	assert.Equal(t, 2, tbl.Len())

	volume, _ := tbl.Column("Volume")
	assert.Equal(t, Int64, volume.DType())
	price, _ := tbl.Column("Price")
	assert.Equal(t, Float64, price.DType())
	assert.Equal(t, 1, price.MissingCount())
	brand, _ := tbl.Column("Brand")
	assert.Equal(t, 2, brand.MissingCount())
	extra, _ := tbl.Column("Extra")
	assert.Equal(t, Object, extra.DType())
}

func TestDecodeRecords_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"object", `{"a": 1}`},
		{"array of scalars", `[1, 2]`},
		{"truncated", `[{"a": 1}`},
		{"garbage", `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecords([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidRecords)
		})
	}
}

func TestFromRows(t *testing.T) {
	tbl, err := FromRows([]string{"id", "name"}, [][]any{{int32(1), []byte("a")}, {int32(2)}})
	require.NoError(t, err)

	id, _ := tbl.Column("id")
	assert.Equal(t, []any{int64(1), int64(2)}, id.Values)
	name, _ := tbl.Column("name")
	assert.Equal(t, []any{"a", nil}, name.Values)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value any
		ok    bool
	}{
		{"iso", "2024-03-15", true},
		{"slashes", "2024/03/15", true},
		{"us", "03/15/2024", true},
		{"rfc3339", "2024-03-15T00:00:00Z", true},
		{"rfc3339 offset", "2024-03-15T05:30:00+05:30", true},
		{"zoned time", want.In(time.FixedZone("EST", -5*3600)), true},
		{"time", want, true},
		{"garbage", "not a date", false},
		{"number", int64(20240315), false},
		{"nil", nil, false},
		{"na token", "NaN", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, want.Equal(got), "got %s", got)
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func TestDateSpan(t *testing.T) {
	dates, valid := ParseDates([]any{"2024-01-10", "bad", "2024-01-01", nil, "2024-02-01"})
	minDate, maxDate, n := DateSpan(dates, valid)

	assert.Equal(t, 3, n)
	assert.Equal(t, "2024-01-01", minDate.Format("2006-01-02"))
	assert.Equal(t, "2024-02-01", maxDate.Format("2006-01-02"))
}

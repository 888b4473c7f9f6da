package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
)

func promoTable(extra ...table.Column) *table.Table {
	cols := []table.Column{
		col("Channel", "GT", "MT"),
		col("Brand", "A", "B"),
		col("PPG", "P1", "P2"),
		col("SalesValue", 100.0, 120.5),
		col("Volume", 10, 12),
	}
	return table.MustFromColumns(append(cols, extra...)...)
}

func TestValidatePromoIntensity_DailyHappyPath(t *testing.T) {
	tbl := promoTable(
		col("Date", "2024-01-01", "2024-01-31"),
		col("Price", 1.5, 2.0),
		col("BasePrice", 2, 2),
		col("PackSize", "1L", "2L"),
		col("Promo_Flag", true, false),
	)

	rep := ValidatePromoIntensity(tbl, DefaultPromoIntensityRules())

	assert.Equal(t, []string{
		"required_cols",
		"granularity",
		"aggregators",
		"Price",
		"BasePrice",
		"promotion_indicator",
		"date_range",
		"records_count",
	}, checks(rep))
	assert.True(t, rep.OK())

	required := onlyRow(t, rep, "required_cols")
	assert.Equal(t, report.StatusPass, required.Status)
	assert.Equal(t, "all required columns present", required.Message)

	granularity := onlyRow(t, rep, "granularity")
	assert.Equal(t, report.StatusPass, granularity.Status)
	assert.Equal(t, "daily", granularity.Message)

	assert.Equal(t, "found columns: PackSize", onlyRow(t, rep, "aggregators").Message)
	assert.Equal(t, "numeric data type confirmed", onlyRow(t, rep, "BasePrice").Message)
	assert.Equal(t, "Promo_Flag", onlyRow(t, rep, "promotion_indicator").ColumnName())
	assert.Equal(t, "from 2024-01-01 to 2024-01-31 (31 days)", onlyRow(t, rep, "date_range").Message)
}

func TestValidatePromoIntensity_Granularity(t *testing.T) {
	tests := []struct {
		name   string
		extra  []table.Column
		status report.Status
		msg    string
	}{
		{
			name:   "date wins over year and week",
			extra:  []table.Column{col("Date", "2024-01-01", "2024-01-08"), col("Year", 2024, 2024), col("Week", 1, 2)},
			status: report.StatusPass,
			msg:    "daily",
		},
		{
			name:   "weekly",
			extra:  []table.Column{col("Year", 2024, 2024), col("Week", 1, 2)},
			status: report.StatusPass,
			msg:    "weekly",
		},
		{
			name:   "year without week",
			extra:  []table.Column{col("Year", 2024, 2024)},
			status: report.StatusFail,
			msg:    "need 'Date' or both 'Year' & 'Week'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := ValidatePromoIntensity(promoTable(tt.extra...), DefaultPromoIntensityRules())

			row := onlyRow(t, rep, "granularity")
			assert.Equal(t, tt.status, row.Status)
			assert.Equal(t, tt.msg, row.Message)
		})
	}
}

func TestValidatePromoIntensity_MissingRequiredAndNulls(t *testing.T) {
	tbl := table.MustFromColumns(
		col("Channel", "GT", nil),
		col("Brand", "A", "B"),
		col("Date", "2024-01-01", "2024-01-02"),
		col("Variant", "v", nil),
	)

	rep := ValidatePromoIntensity(tbl, DefaultPromoIntensityRules())
	assert.False(t, rep.OK())

	required := onlyRow(t, rep, "required_cols")
	assert.Equal(t, report.StatusFail, required.Status)
	assert.Equal(t, "missing columns: PPG, SalesValue, Volume", required.Message)

	var channel, variant report.Row
	for _, r := range rep.Find("missing") {
		switch r.ColumnName() {
		case "Channel":
			channel = r
		case "Variant":
			variant = r
		}
	}
	assert.Equal(t, report.StatusFail, channel.Status, "nulls in required columns fail")
	assert.Equal(t, "1 missing (50.00%)", channel.Message)
	assert.Equal(t, report.StatusWarn, variant.Status)
}

func TestValidatePromoIntensity_PriceColumns(t *testing.T) {
	tbl := promoTable(col("Price", "1.5", "n/a"), col("Date", "2024-01-01", "2024-01-02"))

	rep := ValidatePromoIntensity(tbl, DefaultPromoIntensityRules())

	price := onlyRow(t, rep, "Price")
	assert.Equal(t, report.StatusWarn, price.Status)
	assert.Equal(t, "column found but not numeric (type: object)", price.Message)
	assert.Equal(t, "Price", price.ColumnName())

	base := onlyRow(t, rep, "BasePrice")
	assert.Equal(t, report.StatusWarn, base.Status)
	assert.Equal(t, "column missing; will need to be computed later", base.Message)
}

func TestValidatePromoIntensity_Indicators(t *testing.T) {
	rep := ValidatePromoIntensity(promoTable(col("Year", 2024, 2024), col("Week", 1, 2)), DefaultPromoIntensityRules())

	promo := onlyRow(t, rep, "promotion_indicator")
	assert.Equal(t, report.StatusWarn, promo.Status)
	assert.Equal(t, "no promotion indicator found; will need to be derived", promo.Message)

	agg := onlyRow(t, rep, "aggregators")
	assert.Equal(t, report.StatusWarn, agg.Status)
	assert.Equal(t, "none of the recommended aggregator columns found: Variant, PackType, PackSize", agg.Message)

	assert.Empty(t, rep.Find("date_range"))

	withDiscount := ValidatePromoIntensity(promoTable(col("Trade DISCOUNT %", 0.1, 0.0)), DefaultPromoIntensityRules())
	assert.Equal(t, report.StatusPass, onlyRow(t, withDiscount, "promotion_indicator").Status)
}

func TestValidatePromoIntensity_DateRangeSkipsInvalid(t *testing.T) {
	tbl := promoTable(col("Date", "not a date", "2024-03-05"))
	rep := ValidatePromoIntensity(tbl, DefaultPromoIntensityRules())
	assert.Equal(t, "from 2024-03-05 to 2024-03-05 (1 days)", onlyRow(t, rep, "date_range").Message)

	tbl = promoTable(col("Date", "never", "nope"))
	rep = ValidatePromoIntensity(tbl, DefaultPromoIntensityRules())
	assert.Empty(t, rep.Find("date_range"))
}

func TestValidatePromoIntensity_DateRangeMixedOffsets(t *testing.T) {
	tests := []struct {
		name  string
		dates []any
		msg   string
	}{
		{
			name:  "later instant in a western zone",
			dates: []any{"2024-01-02T01:00:00Z", "2024-01-01T23:00:00-05:00"},
			msg:   "from 2024-01-02 to 2024-01-02 (1 days)",
		},
		{
			name:  "spans midnight utc",
			dates: []any{"2024-01-01T22:00:00Z", "2024-01-02T03:00:00+02:00"},
			msg:   "from 2024-01-01 to 2024-01-02 (2 days)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := ValidatePromoIntensity(promoTable(col("Date", tt.dates...)), DefaultPromoIntensityRules())
			assert.Equal(t, tt.msg, onlyRow(t, rep, "date_range").Message)
		})
	}
}

func TestValidatePromoIntensity_EmptyTable(t *testing.T) {
	tbl := table.MustFromColumns(col("Channel"), col("Brand"), col("PPG"), col("SalesValue"), col("Volume"), col("Date"))
	rep := ValidatePromoIntensity(tbl, DefaultPromoIntensityRules())

	assert.False(t, rep.OK())
	assert.Equal(t, report.StatusFail, onlyRow(t, rep, "data_empty").Status)
	assert.Empty(t, rep.Find("records_count"))
}

package validation

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
)

// ExpectedType pairs a column with the dtype it should have
type ExpectedType struct {
	Column string      `yaml:"column" json:"column" validate:"required"`
	DType  table.DType `yaml:"dtype" json:"dtype" validate:"required,oneof=int64 float64 bool datetime64[ns] object"`
}

// CategoryForecastingRules configures the category forecasting rule set
type CategoryForecastingRules struct {
	DateColumn       string         `yaml:"date_column" json:"date_column" validate:"required"`
	FiscalStartMonth int            `yaml:"fiscal_start_month" json:"fiscal_start_month" validate:"min=1,max=12"`
	FiscalYearColumn string         `yaml:"fiscal_year_column" json:"fiscal_year_column" validate:"required"`
	Dimensions       []string       `yaml:"dimensions" json:"dimensions" validate:"min=1,dive,required"`
	Critical         []string       `yaml:"critical" json:"critical" validate:"dive,required"`
	ExpectedTypes    []ExpectedType `yaml:"expected_types" json:"expected_types" validate:"dive"`
	Standardize      bool           `yaml:"standardize_names" json:"standardize_names"`
}

// PromoIntensityRules configures the promotional intensity rule set
type PromoIntensityRules struct {
	Required      []string       `yaml:"required" json:"required" validate:"dive,required"`
	Aggregators   []string       `yaml:"aggregators" json:"aggregators" validate:"dive,required"`
	PriceColumns  []string       `yaml:"price_columns" json:"price_columns" validate:"dive,required"`
	PromoKeywords []string       `yaml:"promo_keywords" json:"promo_keywords" validate:"min=1,dive,required"`
	DateColumn    string         `yaml:"date_column" json:"date_column" validate:"required"`
	YearColumn    string         `yaml:"year_column" json:"year_column" validate:"required"`
	WeekColumn    string         `yaml:"week_column" json:"week_column" validate:"required"`
	ExpectedTypes []ExpectedType `yaml:"expected_types" json:"expected_types" validate:"dive"`
	Standardize   bool           `yaml:"standardize_names" json:"standardize_names"`
}

// DatasetRules configures one of the two marketing-mix datasets
type DatasetRules struct {
	Required      []string       `yaml:"required" json:"required" validate:"dive,required"`
	NonNull       []string       `yaml:"non_null" json:"non_null" validate:"dive,required"`
	ExpectedTypes []ExpectedType `yaml:"expected_types" json:"expected_types" validate:"dive"`
}

// MMMRules configures the marketing-mix rule set
type MMMRules struct {
	Media             DatasetRules `yaml:"media" json:"media"`
	Sales             DatasetRules `yaml:"sales" json:"sales"`
	YearColumn        string       `yaml:"year_column" json:"year_column" validate:"required"`
	MonthColumn       string       `yaml:"month_column" json:"month_column" validate:"required"`
	AlignmentExamples int          `yaml:"alignment_examples" json:"alignment_examples" validate:"min=1"`
}

// Rules bundles the configuration of every pipeline. Values are treated as
// read-only once handed to a Dispatcher.
type Rules struct {
	CategoryForecasting CategoryForecastingRules `yaml:"category_forecasting" json:"category_forecasting"`
	PromoIntensity      PromoIntensityRules      `yaml:"promo_intensity" json:"promo_intensity"`
	MMM                 MMMRules                 `yaml:"mmm" json:"mmm"`
}

var dimensionColumns = []string{
	"Market", "Channel", "Region", "Category", "SubCategory",
	"Brand", "PPG", "Variant", "PackType", "PackSize",
}

// DefaultCategoryForecastingRules returns a fresh copy of the built-in rules
func DefaultCategoryForecastingRules() CategoryForecastingRules {
	return CategoryForecastingRules{
		DateColumn:       "Date",
		FiscalStartMonth: 4,
		FiscalYearColumn: "Fiscal Year",
		Dimensions:       clone(dimensionColumns),
		Standardize:      true,
	}
}

// DefaultPromoIntensityRules returns a fresh copy of the built-in rules
func DefaultPromoIntensityRules() PromoIntensityRules {
	return PromoIntensityRules{
		Required:      []string{"Channel", "Brand", "PPG", "SalesValue", "Volume"},
		Aggregators:   []string{"Variant", "PackType", "PackSize"},
		PriceColumns:  []string{"Price", "BasePrice"},
		PromoKeywords: []string{"promo", "discount"},
		DateColumn:    "Date",
		YearColumn:    "Year",
		WeekColumn:    "Week",
		Standardize:   true,
	}
}

// DefaultMMMRules returns a fresh copy of the built-in rules
func DefaultMMMRules() MMMRules {
	return MMMRules{
		Media: DatasetRules{
			Required: append(clone(dimensionColumnsMMM), "Year", "Month", "Week", "Media Category", "Media Subcategory"),
			NonNull: []string{
				"Market", "Region", "Category", "SubCategory", "Brand",
				"Year", "Month", "Media Category", "Media Subcategory",
			},
			ExpectedTypes: []ExpectedType{
				{Column: "Amount_Spent", DType: table.Float64},
				{Column: "Year", DType: table.Object},
			},
		},
		Sales: DatasetRules{
			Required: append(clone(dimensionColumnsMMM), "Year", "Month", "Week", "D1", "Price"),
			NonNull: []string{
				"Market", "Region", "Category", "SubCategory", "Brand", "Year", "Month",
			},
			ExpectedTypes: []ExpectedType{
				{Column: "D1", DType: table.Float64},
				{Column: "Volume", DType: table.Float64},
				{Column: "Sales", DType: table.Float64},
				{Column: "Price", DType: table.Float64},
				{Column: "Year", DType: table.Object},
			},
		},
		YearColumn:        "Year",
		MonthColumn:       "Month",
		AlignmentExamples: 5,
	}
}

var dimensionColumnsMMM = []string{
	"Market", "Channel", "Region", "Category", "SubCategory",
	"Brand", "Variant", "PackType", "PPG", "PackSize",
}

// DefaultRules returns the built-in rules for every pipeline
func DefaultRules() Rules {
	return Rules{
		CategoryForecasting: DefaultCategoryForecastingRules(),
		PromoIntensity:      DefaultPromoIntensityRules(),
		MMM:                 DefaultMMMRules(),
	}
}

var rulesValidator = newRulesValidator()

func newRulesValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the rules for structural problems
func (r Rules) Validate() error {
	if err := rulesValidator.Struct(r); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("invalid rules: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid rules: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// ParseRules overlays YAML onto the default rules. Lists in the YAML replace
// the default lists entirely; omitted keys keep their defaults.
func ParseRules(data []byte) (Rules, error) {
	rules := DefaultRules()
	if err := yaml.UnmarshalStrict(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// LoadRules reads a rules file. An empty path yields the defaults.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file %s: %w", path, err)
	}
	return ParseRules(data)
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

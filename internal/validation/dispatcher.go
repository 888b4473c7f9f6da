package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
)

// Pipeline names accepted by Dispatch
const (
	PipelineCategoryForecasting = "category_forecasting"
	PipelinePromoIntensity      = "promo_intensity"
	PipelineMMM                 = "mmm"
)

// Input role keys
const (
	InputData  = "data"
	InputMedia = "media"
	InputSales = "sales"
)

var (
	ErrUnknownPipeline = errors.New("unknown pipeline")
	ErrMissingInput    = errors.New("missing input")
)

// MissingInputError names the input keys a pipeline needed but did not get
type MissingInputError struct {
	Pipeline string
	Expected []string
	Missing  []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s expects inputs with keys %s: missing %s",
		e.Pipeline, strings.Join(e.Expected, " and "), strings.Join(e.Missing, ", "))
}

func (e *MissingInputError) Unwrap() error {
	return ErrMissingInput
}

// PipelineInfo describes a pipeline and the input keys it consumes
type PipelineInfo struct {
	Name   string   `json:"name"`
	Inputs []string `json:"inputs"`
}

// Pipelines lists the pipelines Dispatch understands
func Pipelines() []PipelineInfo {
	return []PipelineInfo{
		{Name: PipelineCategoryForecasting, Inputs: []string{InputData}},
		{Name: PipelinePromoIntensity, Inputs: []string{InputData}},
		{Name: PipelineMMM, Inputs: []string{InputMedia, InputSales}},
	}
}

// InputsFor returns the input keys of a pipeline
func InputsFor(pipeline string) ([]string, error) {
	for _, p := range Pipelines() {
		if p.Name == pipeline {
			return p.Inputs, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPipeline, pipeline)
}

// Dispatcher routes named tables to the rule set of a pipeline. It is safe for
// concurrent use; the rules can be replaced while validations are running and
// each call uses the snapshot current when it started.
type Dispatcher struct {
	rules atomic.Pointer[Rules]
}

// Option customizes a Dispatcher
type Option func(*Dispatcher)

// WithRules replaces the built-in rules
func WithRules(rules Rules) Option {
	return func(d *Dispatcher) {
		d.SetRules(rules)
	}
}

// NewDispatcher returns a dispatcher using the default rules unless overridden
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{}
	d.SetRules(DefaultRules())
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetRules swaps the rules used by subsequent calls
func (d *Dispatcher) SetRules(rules Rules) {
	r := rules
	d.rules.Store(&r)
}

// Rules returns the current rules snapshot
func (d *Dispatcher) Rules() Rules {
	return *d.rules.Load()
}

// Dispatch validates the inputs with the named pipeline's rule set and returns
// its report unchanged. Only an unknown pipeline or missing inputs produce an
// error; findings are always carried by the report. Tables may be renamed in
// place and must not be shared with concurrent calls.
func (d *Dispatcher) Dispatch(pipeline string, inputs map[string]*table.Table) (*report.Report, error) {
	expected, err := InputsFor(pipeline)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, key := range expected {
		if inputs[key] == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingInputError{Pipeline: pipeline, Expected: expected, Missing: missing}
	}

	rules := d.rules.Load()
	switch pipeline {
	case PipelineCategoryForecasting:
		return ValidateCategoryForecasting(inputs[InputData], rules.CategoryForecasting), nil
	case PipelinePromoIntensity:
		return ValidatePromoIntensity(inputs[InputData], rules.PromoIntensity), nil
	case PipelineMMM:
		return ValidateMMM(inputs[InputMedia], inputs[InputSales], rules.MMM), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPipeline, pipeline)
}

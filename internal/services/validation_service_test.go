package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/infrastructure"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/shared/testutil"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/validation"
	"github.com/QUANTMATRIXAI/trinity-dev/pkg/contracts/events"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingPublisher struct {
	mu       sync.Mutex
	types    []string
	payloads []interface{}
}

func (p *recordingPublisher) Publish(_ context.Context, msgType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, msgType)
	p.payloads = append(p.payloads, data)
}

func (p *recordingPublisher) last(t *testing.T) events.ValidationSummary {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.payloads)
	summary, ok := p.payloads[len(p.payloads)-1].(events.ValidationSummary)
	require.True(t, ok)
	return summary
}

func newTestService(t *testing.T) (*ValidationService, *recordingPublisher, *tracetest.SpanRecorder, *testutil.BufferedSlogHandler) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	logger, logs := testutil.NewTestLogger(t)
	pub := &recordingPublisher{}
	svc := NewValidationService(validation.NewDispatcher(), tp.Tracer("test"), infrastructure.NoopMetrics(), pub, logger)
	return svc, pub, recorder, logs
}

func promoTable() *table.Table {
	return table.MustFromColumns(
		table.Column{Name: " Channel", Values: []any{"Retail", "Online"}},
		table.Column{Name: "Brand", Values: []any{"A", "B"}},
		table.Column{Name: "PPG", Values: []any{"P1", "P2"}},
		table.Column{Name: "SalesValue", Values: []any{10.5, 12.0}},
		table.Column{Name: "Volume", Values: []any{int64(3), int64(4)}},
		table.Column{Name: "Date", Values: []any{"2024-01-01", "2024-01-08"}},
	)
}

func TestValidationService_Validate(t *testing.T) {
	svc, pub, recorder, logs := newTestService(t)
	ctx := WithSource(infrastructure.WithTraceID(context.Background(), "trace-9"), "http")

	rep, err := svc.Validate(ctx, validation.PipelinePromoIntensity, map[string]*table.Table{
		validation.InputData: promoTable(),
	})
	require.NoError(t, err)
	require.NotNil(t, rep)

	summary := pub.last(t)
	assert.Equal(t, validation.PipelinePromoIntensity, summary.Pipeline)
	assert.Equal(t, "http", summary.Source)
	assert.Equal(t, rep.OK(), summary.OK)
	assert.Equal(t, rep.Len(), summary.Rows)
	assert.Equal(t, StatusCounts(rep), summary.Counts)
	if rep.OK() {
		assert.Equal(t, OutcomeOK, summary.Outcome)
	} else {
		assert.Equal(t, OutcomeNotOK, summary.Outcome)
	}

	testutil.AssertLogContains(t, logs, slog.LevelInfo, "validation completed")
	testutil.AssertLogAttr(t, logs, "component", "validation_service")
	testutil.AssertLogAttr(t, logs, "input_rows", int64(2))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "validation.Validate", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("validation.pipeline", validation.PipelinePromoIntensity))
	assert.Contains(t, spans[0].Attributes(), attribute.Bool("validation.ok", rep.OK()))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("validation.input.data.rows", 2))
}

func TestValidationService_FindingsAreNotErrors(t *testing.T) {
	svc, pub, _, _ := newTestService(t)

	rep, err := svc.Validate(context.Background(), validation.PipelineCategoryForecasting, map[string]*table.Table{
		validation.InputData: table.New(0),
	})
	require.NoError(t, err)
	assert.False(t, rep.OK())

	summary := pub.last(t)
	assert.Equal(t, OutcomeNotOK, summary.Outcome)
	assert.Equal(t, "api", summary.Source)
	assert.Positive(t, summary.Counts[report.StatusFail.String()])
}

func TestValidationService_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		pipeline string
		inputs   map[string]*table.Table
		wantIs   error
	}{
		{
			name:     "unknown pipeline",
			pipeline: "forecast",
			inputs:   map[string]*table.Table{validation.InputData: table.New(1)},
			wantIs:   validation.ErrUnknownPipeline,
		},
		{
			name:     "missing sales",
			pipeline: validation.PipelineMMM,
			inputs:   map[string]*table.Table{validation.InputMedia: table.New(1)},
			wantIs:   validation.ErrMissingInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, pub, recorder, logs := newTestService(t)

			rep, err := svc.Validate(context.Background(), tt.pipeline, tt.inputs)
			require.ErrorIs(t, err, tt.wantIs)
			assert.Nil(t, rep)

			summary := pub.last(t)
			assert.Equal(t, OutcomeError, summary.Outcome)
			assert.NotEmpty(t, summary.Error)
			testutil.AssertLogContains(t, logs, slog.LevelWarn, "validation rejected")

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.NotEmpty(t, spans[0].Events(), "error recorded on span")
		})
	}
}

func TestValidationService_NilOptionalDependencies(t *testing.T) {
	svc := NewValidationService(nil, nil, nil, nil, nil)

	rep, err := svc.Validate(context.Background(), validation.PipelinePromoIntensity, map[string]*table.Table{
		validation.InputData: promoTable(),
	})
	require.NoError(t, err)
	assert.NotZero(t, rep.Len())
}

func TestValidationService_ApplyRules(t *testing.T) {
	dispatcher := validation.NewDispatcher()
	svc := NewValidationService(dispatcher, nil, nil, nil, nil)

	rules := validation.DefaultRules()
	rules.MMM.AlignmentExamples = 2
	svc.ApplyRules(rules)

	assert.Equal(t, 2, dispatcher.Rules().MMM.AlignmentExamples)
}

func TestValidationService_Pipelines(t *testing.T) {
	svc := NewValidationService(nil, nil, nil, nil, nil)

	infos := svc.Pipelines()
	require.Len(t, infos, 3)
	assert.Equal(t, validation.PipelineMMM, infos[2].Name)
	assert.Equal(t, []string{validation.InputMedia, validation.InputSales}, infos[2].Inputs)
}

func TestNewValidateResponse(t *testing.T) {
	rep := report.New()
	rep.Add(report.StatusPass, "records_count", "2 records")
	rep.AddColumn(report.StatusFail, "missing_values", "Brand", "1 missing (50.00%)")

	resp := NewValidateResponse("promo_intensity", rep, map[string]*table.Table{"data": table.New(2), "unused": nil})

	assert.False(t, resp.OK)
	assert.Equal(t, "promo_intensity", resp.Pipeline)
	assert.Equal(t, map[string]int{"pass": 1, "warn": 0, "fail": 1}, resp.Counts)
	assert.Equal(t, map[string]int{"data": 2}, resp.Inputs)
	require.Len(t, resp.Rows, 2)
	assert.Nil(t, resp.Rows[0].Column)
	require.NotNil(t, resp.Rows[1].Column)
	assert.Equal(t, "Brand", *resp.Rows[1].Column)
	assert.Equal(t, "fail", resp.Rows[1].Status)
	assert.Equal(t, "1 missing (50.00%)", resp.Rows[1].Message)
}

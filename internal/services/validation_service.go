package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/infrastructure"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/validation"
	api "github.com/QUANTMATRIXAI/trinity-dev/pkg/contracts/api/v1"
	"github.com/QUANTMATRIXAI/trinity-dev/pkg/contracts/events"
)

// Run outcomes used as metric labels and event fields
const (
	OutcomeOK    = "ok"
	OutcomeNotOK = "not_ok"
	OutcomeError = "error"
)

// Publisher receives a summary of every validation run
type Publisher interface {
	Publish(ctx context.Context, msgType string, data interface{})
}

type sourceKey struct{}

// WithSource labels validations started under ctx (for example "http", "cli", "schedule")
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "api"
}

// ValidationService runs pipelines through the dispatcher with tracing,
// metrics, logging and event publishing
type ValidationService struct {
	dispatcher *validation.Dispatcher
	tracer     trace.Tracer
	metrics    *infrastructure.Metrics
	publisher  Publisher
	logger     *slog.Logger
}

// NewValidationService creates a validation service. Tracer, metrics and
// publisher are optional.
func NewValidationService(dispatcher *validation.Dispatcher, tracer trace.Tracer, metrics *infrastructure.Metrics, publisher Publisher, logger *slog.Logger) *ValidationService {
	if dispatcher == nil {
		dispatcher = validation.NewDispatcher()
	}
	if tracer == nil {
		tracer = otel.Tracer(infrastructure.InstrumentationName)
	}
	if metrics == nil {
		metrics = infrastructure.NoopMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ValidationService{
		dispatcher: dispatcher,
		tracer:     tracer,
		metrics:    metrics,
		publisher:  publisher,
		logger:     logger.With(slog.String("component", "validation_service")),
	}
}

// Validate runs the named pipeline over inputs. The tables may be renamed in
// place by the rule set.
func (s *ValidationService) Validate(ctx context.Context, pipeline string, inputs map[string]*table.Table) (*report.Report, error) {
	source := sourceFrom(ctx)
	ctx, span := s.tracer.Start(ctx, "validation.Validate",
		trace.WithAttributes(
			attribute.String("validation.pipeline", pipeline),
			attribute.String("validation.source", source),
			attribute.Int("validation.inputs", len(inputs)),
		))
	defer span.End()

	inputRows := 0
	for key, tbl := range inputs {
		if tbl == nil {
			continue
		}
		inputRows += tbl.Len()
		span.SetAttributes(attribute.Int("validation.input."+key+".rows", tbl.Len()))
	}
	s.metrics.InputRows.Add(ctx, int64(inputRows), metric.WithAttributes(attribute.String("pipeline", pipeline)))

	start := time.Now()
	rep, err := s.dispatcher.Dispatch(pipeline, inputs)
	duration := time.Since(start)

	summary := events.ValidationSummary{
		Pipeline:   pipeline,
		Source:     source,
		DurationMS: duration.Milliseconds(),
	}

	if err != nil {
		summary.Outcome = OutcomeError
		summary.Error = err.Error()
		infrastructure.RecordError(ctx, err)
		s.metrics.RecordValidation(ctx, pipeline, OutcomeError, duration, nil)
		s.logger.WarnContext(ctx, "validation rejected",
			slog.String("pipeline", pipeline),
			slog.String("source", source),
			slog.String("error", err.Error()),
			slog.Bool("unknown_pipeline", errors.Is(err, validation.ErrUnknownPipeline)),
		)
		s.publish(ctx, summary)
		return nil, err
	}

	counts := StatusCounts(rep)
	summary.OK = rep.OK()
	summary.Outcome = OutcomeNotOK
	if summary.OK {
		summary.Outcome = OutcomeOK
	}
	summary.Rows = rep.Len()
	summary.Counts = counts

	s.metrics.RecordValidation(ctx, pipeline, summary.Outcome, duration, counts)
	span.SetAttributes(
		attribute.Bool("validation.ok", summary.OK),
		attribute.Int("validation.rows", rep.Len()),
		attribute.Int("validation.fail", counts[report.StatusFail.String()]),
	)

	s.logger.InfoContext(ctx, "validation completed",
		slog.String("pipeline", pipeline),
		slog.String("source", source),
		slog.Bool("ok", summary.OK),
		slog.Int("rows", rep.Len()),
		slog.Int("pass", counts[report.StatusPass.String()]),
		slog.Int("warn", counts[report.StatusWarn.String()]),
		slog.Int("fail", counts[report.StatusFail.String()]),
		slog.Int("input_rows", inputRows),
		slog.Duration("duration", duration),
	)
	s.publish(ctx, summary)
	return rep, nil
}

func (s *ValidationService) publish(ctx context.Context, summary events.ValidationSummary) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, string(events.MessageTypeValidationComplete), summary)
}

// ApplyRules swaps the rules used by later validations
func (s *ValidationService) ApplyRules(rules validation.Rules) {
	s.dispatcher.SetRules(rules)
	s.metrics.RulesReloads.Add(context.Background(), 1)
	s.logger.Info("validation rules applied")
}

// Pipelines lists the available pipelines and their input keys
func (s *ValidationService) Pipelines() []api.PipelineInfo {
	infos := validation.Pipelines()
	out := make([]api.PipelineInfo, len(infos))
	for i, p := range infos {
		out[i] = api.PipelineInfo{Name: p.Name, Inputs: p.Inputs}
	}
	return out
}

// StatusCounts tallies report rows by status name
func StatusCounts(rep *report.Report) map[string]int {
	counts := make(map[string]int, 3)
	for status, n := range rep.Counts() {
		counts[status.String()] = n
	}
	return counts
}

// NewValidateResponse converts a report into its wire form
func NewValidateResponse(pipeline string, rep *report.Report, inputs map[string]*table.Table) api.ValidateResponse {
	rows := rep.Rows()
	resp := api.ValidateResponse{
		OK:       rep.OK(),
		Pipeline: pipeline,
		Counts:   StatusCounts(rep),
		Rows:     make([]api.Row, len(rows)),
	}
	for i, row := range rows {
		resp.Rows[i] = api.Row{
			Check:   row.Check,
			Status:  row.Status.String(),
			Message: row.Message,
			Column:  row.Column,
		}
	}
	if len(inputs) > 0 {
		resp.Inputs = make(map[string]int, len(inputs))
		for key, tbl := range inputs {
			if tbl != nil {
				resp.Inputs[key] = tbl.Len()
			}
		}
	}
	return resp
}

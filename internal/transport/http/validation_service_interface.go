package http

import (
	"context"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
	api "github.com/QUANTMATRIXAI/trinity-dev/pkg/contracts/api/v1"
)

// ValidationServiceInterface defines the validation operations the handlers need
type ValidationServiceInterface interface {
	Validate(ctx context.Context, pipeline string, inputs map[string]*table.Table) (*report.Report, error)
	Pipelines() []api.PipelineInfo
}

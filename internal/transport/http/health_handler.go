package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/services"
	"github.com/QUANTMATRIXAI/trinity-dev/pkg/contracts"
	api "github.com/QUANTMATRIXAI/trinity-dev/pkg/contracts/api/v1"
)

// Endpoints lists the public routes announced by the root endpoint
var Endpoints = []string{
	"GET /health",
	"GET /api/health",
	"GET /api/version",
	"GET /api/v1/pipelines",
	"POST /api/v1/validate",
	"POST /api/v1/validate/file",
	"POST /api/v1/validate/export",
	"GET /ws",
	"GET /metrics",
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	service   *services.HealthService
	pipelines []api.PipelineInfo
	logger    *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service *services.HealthService, pipelines []api.PipelineInfo, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		service:   service,
		pipelines: pipelines,
		logger:    logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /health and GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.HealthCheck(r.Context()))
}

// Version handles GET /api/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	info := h.service.Version()
	build := contracts.GetVersionInfo()
	info["build_time"] = build.BuildTime
	info["git_commit"] = build.GitCommit
	info["api_version"] = build.APIVersion
	render.JSON(w, r, info)
}

// ServiceInfo handles GET /
func (h *HealthHandler) ServiceInfo(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.ServiceInfo{
		Service:    contracts.ServiceName,
		Version:    contracts.Version,
		APIVersion: contracts.APIVersion,
		Pipelines:  h.pipelines,
		Endpoints:  Endpoints,
	})
}

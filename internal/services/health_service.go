package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/validation"
	api "github.com/QUANTMATRIXAI/trinity-dev/pkg/contracts/api/v1"
)

// HubStats is implemented by the websocket hub
type HubStats interface {
	Stats() map[string]int64
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	startTime time.Time
	hub       HubStats
	reloads   func() int
	logger    *slog.Logger
}

// NewHealthService creates a health service. hub and reloads may be nil.
func NewHealthService(version string, hub HubStats, reloads func() int, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		startTime: time.Now(),
		hub:       hub,
		reloads:   reloads,
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) api.HealthResponse {
	infos := validation.Pipelines()
	names := make([]string, len(infos))
	for i, p := range infos {
		names[i] = p.Name
	}

	status := api.HealthResponse{
		Status:        "ok",
		Version:       hs.version,
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		Pipelines:     names,
	}
	if hs.reloads != nil {
		status.RulesReloads = hs.reloads()
	}
	if hs.hub != nil {
		status.WebSocket = hs.hub.Stats()
	}

	hs.logger.DebugContext(ctx, "health check", slog.String("status", status.Status))
	return status
}

// Version returns version and runtime information
func (hs *HealthService) Version() map[string]interface{} {
	return map[string]interface{}{
		"version":    hs.version,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"start_time": hs.startTime.UTC().Format(time.RFC3339),
		"goroutines": runtime.NumGoroutine(),
	}
}

package api

import "time"

// Row is one rule outcome on the wire. Column is null for dataset-level rows.
type Row struct {
	Check   string  `json:"check"`
	Status  string  `json:"status"`
	Message string  `json:"msg"`
	Column  *string `json:"column"`
}

// ValidateResponse carries a validation report
type ValidateResponse struct {
	OK       bool           `json:"ok"`
	Pipeline string         `json:"pipeline"`
	Counts   map[string]int `json:"counts"`
	Rows     []Row          `json:"rows"`
	Inputs   map[string]int `json:"inputs,omitempty"`
}

// PipelineInfo describes a pipeline and the input keys it requires
type PipelineInfo struct {
	Name   string   `json:"name"`
	Inputs []string `json:"inputs"`
}

// PipelinesResponse lists the available pipelines
type PipelinesResponse struct {
	Pipelines []PipelineInfo `json:"pipelines"`
}

// HealthResponse is returned by the health endpoints
type HealthResponse struct {
	Status        string           `json:"status"`
	Version       string           `json:"version"`
	Timestamp     time.Time        `json:"timestamp"`
	UptimeSeconds float64          `json:"uptime_seconds"`
	Pipelines     []string         `json:"pipelines"`
	RulesReloads  int              `json:"rules_reloads"`
	WebSocket     map[string]int64 `json:"websocket,omitempty"`
}

// ServiceInfo is returned by the root endpoint
type ServiceInfo struct {
	Service    string         `json:"service"`
	Version    string         `json:"version"`
	APIVersion string         `json:"api_version"`
	Pipelines  []PipelineInfo `json:"pipelines"`
	Endpoints  []string       `json:"endpoints"`
}

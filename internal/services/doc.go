// Package services sits between the transports (HTTP handlers, CLI) and the
// validation core. It adds what every validation run needs regardless of how
// it was requested:
//
//	- a trace span per run, with the pipeline and verdict as attributes
//	- structured logs carrying the request trace ID
//	- metrics for runs, report rows by status and submitted input rows
//	- a summary event published to websocket subscribers
//
// Findings are never errors. Validate returns an error only when the
// dispatcher rejects the request itself (unknown pipeline or missing inputs).
//
// Typical use:
//
//	svc := services.NewValidationService(dispatcher, tracer, metrics, hub, logger)
//	rep, err := svc.Validate(ctx, "mmm", map[string]*table.Table{"media": m, "sales": s})
package services

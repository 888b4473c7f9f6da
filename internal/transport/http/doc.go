// Package http implements the HTTP handlers of the validation service. The
// handlers only parse requests and shape responses; validation itself lives in
// the services package.
//
// # Endpoints
//
//	GET  /                          service name, version, pipelines
//	GET  /health, /api/health       liveness with uptime and hub stats
//	GET  /api/v1/pipelines          pipelines and their input keys
//	POST /api/v1/validate           JSON records per input key
//	POST /api/v1/validate/file      multipart CSV or XLSX uploads
//	POST /api/v1/validate/export    same body as validate, report as csv or xlsx
//
// A request that produces a report answers 200 even when the report has
// failing rows. Unknown pipelines, missing inputs, malformed bodies and
// unreadable files are answered with RFC 7807 problem details:
//
//	{
//	    "type": "/errors/pipeline/missing-input",
//	    "title": "Bad Request",
//	    "status": 400,
//	    "detail": "Pipeline mmm is missing inputs: sales",
//	    "instance": "/api/v1/validate",
//	    "error_code": "MISSING_INPUT"
//	}
//
// # Uploads
//
// Without a file_keys field a single upload fills "data". For mmm the first
// two uploads fill "media" and "sales"; for the other pipelines later uploads
// fill "data_1", "data_2" and so on. Files are parsed concurrently.
package http

// Package api contains the HTTP contract of the validation service, version v1.
package api

import "encoding/json"

// ValidateRequest asks for one pipeline to be run over named record lists.
// Each Data value is a JSON array of objects; it is kept raw so that columns
// keep the order in which their keys first appear. Empty or null record lists
// are treated as absent inputs.
type ValidateRequest struct {
	Pipeline string                     `json:"pipeline" validate:"required"`
	Data     map[string]json.RawMessage `json:"data" validate:"required,min=1"`
}

// FileKeys maps a multipart file index ("0", "1", ...) to the input key it fills
type FileKeys struct {
	Keys map[string]string `json:"file_keys" validate:"omitempty,dive,keys,numeric,endkeys,input_key"`
}

// Export formats accepted by the export endpoint
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ExportFormats lists the accepted export formats
var ExportFormats = []string{FormatCSV, FormatXLSX}

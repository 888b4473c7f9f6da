// Package events contains the websocket event contracts of the validation service.
package events

// MessageType identifies a websocket message
type MessageType string

const (
	MessageTypeConnection         MessageType = "connection"
	MessageTypeValidationComplete MessageType = "validation:complete"
)

// ValidationSummary is published after every validation run, successful or not
type ValidationSummary struct {
	Pipeline   string         `json:"pipeline"`
	Source     string         `json:"source"`
	OK         bool           `json:"ok"`
	Outcome    string         `json:"outcome"`
	Rows       int            `json:"rows"`
	Counts     map[string]int `json:"counts,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
}

package report

import (
	"fmt"
	"strings"
)

// Status is the severity of a single rule outcome
type Status uint8

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

var statusNames = [...]string{
	StatusPass: "pass",
	StatusWarn: "warn",
	StatusFail: "fail",
}

var statusIcons = [...]string{
	StatusPass: "✅",
	StatusWarn: "⚠️",
	StatusFail: "❌",
}

// String returns the wire name of the status
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Valid reports whether s is one of the three defined severities
func (s Status) Valid() bool {
	return s <= StatusFail
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus converts a wire name back into a Status
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// Row is one rule outcome. Column is nil for dataset-level checks.
type Row struct {
	Check   string  `json:"check"`
	Status  Status  `json:"status"`
	Message string  `json:"msg"`
	Column  *string `json:"column"`
}

// ColumnName returns the column the row concerns, or "" for dataset-level rows
func (r Row) ColumnName() string {
	if r.Column == nil {
		return ""
	}
	return *r.Column
}

// Report is an ordered, append-only log of rule outcomes for one validation call.
// A Report is not safe for concurrent use; each validation owns its own instance.
type Report struct {
	rows []Row
}

// New returns an empty report
func New() *Report {
	return &Report{}
}

// Add appends a dataset-level outcome
func (r *Report) Add(status Status, check, message string) {
	r.rows = append(r.rows, Row{Check: check, Status: status, Message: message})
}

// AddColumn appends an outcome scoped to a single column
func (r *Report) AddColumn(status Status, check, column, message string) {
	col := column
	r.rows = append(r.rows, Row{Check: check, Status: status, Message: message, Column: &col})
}

// OK is true when no row has failed. It is recomputed on every call.
func (r *Report) OK() bool {
	for _, row := range r.rows {
		if row.Status == StatusFail {
			return false
		}
	}
	return true
}

// Rows returns a copy of the rows in insertion order
func (r *Report) Rows() []Row {
	out := make([]Row, len(r.rows))
	for i, row := range r.rows {
		out[i] = row
		if row.Column != nil {
			col := *row.Column
			out[i].Column = &col
		}
	}
	return out
}

// Len returns the number of rows
func (r *Report) Len() int {
	return len(r.rows)
}

// Counts tallies rows per status
func (r *Report) Counts() map[Status]int {
	counts := map[Status]int{StatusPass: 0, StatusWarn: 0, StatusFail: 0}
	for _, row := range r.rows {
		counts[row.Status]++
	}
	return counts
}

// Find returns the rows produced by the named check
func (r *Report) Find(check string) []Row {
	var out []Row
	for _, row := range r.Rows() {
		if row.Check == check {
			out = append(out, row)
		}
	}
	return out
}

func (r *Report) String() string {
	var b strings.Builder
	for _, row := range r.rows {
		icon := "?"
		if row.Status.Valid() {
			icon = statusIcons[row.Status]
		}
		fmt.Fprintf(&b, "%s %s", icon, row.Check)
		if row.Column != nil {
			fmt.Fprintf(&b, " (%s)", *row.Column)
		}
		if row.Message != "" {
			fmt.Fprintf(&b, ": %s", row.Message)
		}
		b.WriteByte('\n')
	}
	if r.OK() {
		b.WriteString("-- PASS --\n")
	} else {
		b.WriteString("-- FAIL --\n")
	}
	return b.String()
}

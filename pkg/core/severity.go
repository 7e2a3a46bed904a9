package core

import "strings"

// Severity indicates the importance of a parse diagnostic.
type Severity int

// Severity levels for diagnostics.
const (
	// SeverityError marks a node that could not be processed at all.
	SeverityError Severity = iota
	// SeverityWarning marks a node processed with a dropped edge or field.
	SeverityWarning
	// SeverityInfo marks informational feedback.
	SeverityInfo
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a string to a Severity value.
// Returns the severity and true if valid, or SeverityWarning and false if invalid.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(s) {
	case "error":
		return SeverityError, true
	case "warning", "warn":
		return SeverityWarning, true
	case "info":
		return SeverityInfo, true
	default:
		return SeverityWarning, false
	}
}

// Diagnostic is a recoverable anomaly recorded during a parse. Node is the
// opaque ID of the offending node.
type Diagnostic struct {
	Severity Severity
	Node     string
	Message  string
	Err      error
}

func (d Diagnostic) String() string {
	if d.Err != nil {
		return d.Severity.String() + ": " + d.Node + ": " + d.Err.Error()
	}
	return d.Severity.String() + ": " + d.Node + ": " + d.Message
}

package dbt

import "github.com/leapstack-labs/leapmeta/pkg/core"

// Report summarizes one manifest parse.
type Report struct {
	SchemaVersion string
	Shape         string
	Platform      core.DataPlatform

	Sources int
	Macros  int
	Models  int
	Tests   int
	Metrics int

	SkippedModels int
	SkippedTests  int

	Diagnostics []core.Diagnostic
}

// Warnings returns the number of warning diagnostics.
func (r *Report) Warnings() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == core.SeverityWarning {
			n++
		}
	}
	return n
}

// Degraded reports whether some node or edge was dropped.
func (r *Report) Degraded() bool {
	return r.Warnings() > 0
}

func (r *Report) warn(node, message string, err error) {
	r.Diagnostics = append(r.Diagnostics, core.Diagnostic{
		Severity: core.SeverityWarning,
		Node:     node,
		Message:  message,
		Err:      err,
	})
}

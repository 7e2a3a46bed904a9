package manifest

import (
	"time"

	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// RunResults is the unified form of run_results.json.
type RunResults struct {
	Metadata    Metadata    `mapstructure:"metadata"`
	Results     []RunResult `mapstructure:"results"`
	ElapsedTime float64     `mapstructure:"elapsed_time"`
}

// RunResult is the outcome of one node in a dbt invocation.
type RunResult struct {
	UniqueID      string       `mapstructure:"unique_id"`
	Status        string       `mapstructure:"status"`
	Message       string       `mapstructure:"message"`
	Failures      *int         `mapstructure:"failures"`
	ExecutionTime float64      `mapstructure:"execution_time"`
	Timing        []TimingInfo `mapstructure:"timing"`
}

// TimingInfo is one timed phase (compile, execute) of a result.
type TimingInfo struct {
	Name        string `mapstructure:"name"`
	StartedAt   string `mapstructure:"started_at"`
	CompletedAt string `mapstructure:"completed_at"`
}

// CompletedAt returns the latest completion time across all phases.
func (r *RunResult) CompletedAt() (time.Time, bool) {
	var latest time.Time
	for _, t := range r.Timing {
		ts, err := time.Parse(time.RFC3339Nano, t.CompletedAt)
		if err != nil {
			continue
		}
		if ts.After(latest) {
			latest = ts
		}
	}
	return latest, !latest.IsZero()
}

// DecodeRunResults decodes a run_results.json tree.
func DecodeRunResults(doc map[string]any) (*RunResults, error) {
	if _, err := schemaURL(doc); err != nil {
		return nil, err
	}
	var rr RunResults
	if err := decodeInto(doc, &rr); err != nil {
		return nil, &core.MalformedDocumentError{Reason: "run results do not match schema", Err: err}
	}
	return &rr, nil
}

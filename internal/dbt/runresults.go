package dbt

import (
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapmeta/internal/manifest"
	"github.com/leapstack-labs/leapmeta/internal/registry"
	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// ApplyRunResults records the latest outcome of every known test.
// Returns the number of tests updated.
func ApplyRunResults(acc *registry.Accumulator, rr *manifest.RunResults, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	results := make(map[string]*manifest.RunResult, len(rr.Results))
	for i := range rr.Results {
		results[rr.Results[i].UniqueID] = &rr.Results[i]
	}

	updated := 0
	for _, view := range acc.VirtualViews.All() {
		if view.DbtModel == nil {
			continue
		}
		for i := range view.DbtModel.Tests {
			test := &view.DbtModel.Tests[i]
			r, ok := results[test.UniqueID]
			if !ok {
				continue
			}
			test.Status = testStatus(r.Status)
			if ts, ok := r.CompletedAt(); ok {
				test.LastRunAt = &ts
			}
			updated++
		}
	}
	logger.Debug("applied run results", "results", len(rr.Results), "tests", updated)
	return updated
}

func testStatus(status string) core.TestStatus {
	switch strings.ToLower(status) {
	case "pass", "success":
		return core.TestStatusPass
	case "warn":
		return core.TestStatusWarn
	case "fail":
		return core.TestStatusFail
	case "error", "runtime error":
		return core.TestStatusError
	case "skipped":
		return core.TestStatusSkipped
	default:
		return core.TestStatusUnknown
	}
}

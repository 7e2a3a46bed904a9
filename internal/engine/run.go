package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapmeta/internal/dbt"
	"github.com/leapstack-labs/leapmeta/internal/sink"
	"github.com/leapstack-labs/leapmeta/internal/state"
	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// RunResult is the outcome of one extraction run.
type RunResult struct {
	Run    *core.Run
	Result *dbt.Result
	// Sink is the location the events were written to
	Sink string
}

// Run executes one extraction run.
//
// The run is recorded in the state store in every case. A fatal extraction
// error, a store error or a sink error marks it failed; recoverable parse
// diagnostics mark it degraded.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	e.logger.Info("starting run", "manifest", e.cfg.Manifest)

	extractor := dbt.NewExtractor(e.cfg, e.resolver, e.logger)
	res, extractErr := extractor.Extract(ctx)

	source := core.RunSource{ManifestURI: e.cfg.Manifest}
	if res != nil {
		source.ManifestHash = res.ManifestHash
		source.SchemaVersion = res.Report.SchemaVersion
	}
	run, err := e.store.CreateRun(source)
	if err != nil {
		return nil, errors.Join(extractErr, fmt.Errorf("failed to create run: %w", err))
	}
	e.logger.Debug("created run", "run_id", run.ID)

	if extractErr != nil {
		e.fail(run.ID, 0, extractErr)
		return &RunResult{Run: e.reload(run)}, extractErr
	}

	out := &RunResult{Run: run, Result: res}
	warnings := res.Report.Warnings()
	if err := e.record(run.ID, res); err != nil {
		e.fail(run.ID, warnings, err)
		out.Run = e.reload(run)
		return out, err
	}

	s, err := sink.New(e.resolver, e.cfg.Sink.URI, e.cfg.Sink.Format)
	if err == nil {
		err = s.WithStdout(e.stdout).Write(ctx, res.Events())
	}
	if err != nil {
		err = fmt.Errorf("failed to write sink: %w", err)
		e.fail(run.ID, warnings, err)
		out.Run = e.reload(run)
		return out, err
	}
	out.Sink = s.URI()

	status := core.RunStatusCompleted
	if res.Report.Degraded() {
		status = core.RunStatusDegraded
	}
	if err := e.store.CompleteRun(run.ID, status, warnings, ""); err != nil {
		return nil, fmt.Errorf("failed to complete run: %w", err)
	}
	e.logger.Info("run completed", "run_id", run.ID, "status", status, "warnings", warnings)

	out.Run = e.reload(run)
	return out, nil
}

func (e *Engine) record(runID string, res *dbt.Result) error {
	records, err := state.Records(res.Events())
	if err != nil {
		return err
	}
	if err := e.store.SaveEntities(runID, records); err != nil {
		return err
	}
	return e.store.SaveEdges(runID, res.Edges())
}

func (e *Engine) fail(runID string, warnings int, cause error) {
	e.logger.Error("run failed", "run_id", runID, "error", cause)
	if err := e.store.CompleteRun(runID, core.RunStatusFailed, warnings, cause.Error()); err != nil {
		e.logger.Error("failed to complete run", "run_id", runID, "error", err)
	}
}

// reload returns the stored state of run, falling back to run itself.
func (e *Engine) reload(run *core.Run) *core.Run {
	if stored, err := e.store.GetRun(run.ID); err == nil {
		return stored
	}
	return run
}

// ResolveRun returns the run with id, or the latest run when id is empty
// or "latest".
func ResolveRun(store core.Store, id string) (*core.Run, error) {
	if id != "" && id != "latest" {
		return store.GetRun(id)
	}
	run, err := store.GetLatestRun()
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrNoRuns
	}
	return run, nil
}

// ErrNoRuns is returned when the state store holds no runs.
var ErrNoRuns = errors.New("no extraction runs recorded; run `leapmeta extract` first")

// Elapsed returns how long a finished run took.
func Elapsed(run *core.Run) time.Duration {
	if run == nil || run.CompletedAt == nil {
		return 0
	}
	return run.CompletedAt.Sub(run.StartedAt)
}

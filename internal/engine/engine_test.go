package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapmeta/internal/blob"
	"github.com/leapstack-labs/leapmeta/internal/config"
	"github.com/leapstack-labs/leapmeta/internal/state"
	"github.com/leapstack-labs/leapmeta/internal/testutil"
	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, a testutil.Artifacts) (*Engine, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		Manifest:   a.Manifest,
		Catalog:    a.Catalog,
		RunResults: a.RunResults,
		Sink:       config.SinkConfig{URI: filepath.Join(a.Dir, "out", "events.json")},
		StatePath:  ":memory:",
	}
	cfg.ApplyDefaults()

	eng, err := New(Config{Extract: cfg, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng, cfg
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Config{})
	var ce *core.ConfigurationError
	assert.ErrorAs(t, err, &ce)
}

func TestNew_InvalidStatePath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	cfg := &config.Config{Manifest: "m.json", StatePath: filepath.Join(blocker, "state.db")}
	_, err := New(Config{Extract: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open state store")
}

func TestEngine_Run(t *testing.T) {
	a := testutil.WriteArtifacts(t)
	eng, cfg := newTestEngine(t, a)

	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, res.Run)
	assert.Equal(t, core.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, 0, res.Run.Warnings)
	assert.Equal(t, "v7", res.Run.SchemaVersion)
	assert.Equal(t, res.Result.ManifestHash, res.Run.ManifestHash)
	assert.Equal(t, cfg.Manifest, res.Run.ManifestURI)
	assert.NotNil(t, res.Run.CompletedAt)
	assert.Equal(t, cfg.Sink.URI, res.Sink)

	// sink
	data, err := os.ReadFile(cfg.Sink.URI)
	require.NoError(t, err)
	var events []core.MetadataChangeEvent
	require.NoError(t, json.Unmarshal(data, &events))
	assert.Len(t, events, 5)

	// state
	records, err := eng.Store().ListEntities(res.Run.ID)
	require.NoError(t, err)
	assert.Len(t, records, 5)
	edges, err := eng.Store().ListEdges(res.Run.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 5)

	rec, err := eng.Store().GetEntity(res.Run.ID, records[0].ID)
	require.NoError(t, err)
	ev, err := state.Event(rec)
	require.NoError(t, err)
	assert.Equal(t, rec.Type, ev.EntityType())
}

func TestEngine_RunDegraded(t *testing.T) {
	a := testutil.WriteArtifacts(t)
	manifest := strings.Replace(testutil.ManifestV7, `"adapter_type": "snowflake"`, `"adapter_type": "fancydb"`, 1)
	require.NoError(t, os.WriteFile(a.Manifest, []byte(manifest), 0o600))
	eng, _ := newTestEngine(t, a)

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusDegraded, res.Run.Status)
	assert.Equal(t, 1, res.Run.Warnings)
}

func TestEngine_RunFailedExtraction(t *testing.T) {
	a := testutil.WriteArtifacts(t)
	require.NoError(t, os.WriteFile(a.Manifest, []byte(`{"metadata": {"dbt_schema_version": "https://schemas.getdbt.com/dbt/manifest/v99.json"}}`), 0o600))
	eng, _ := newTestEngine(t, a)

	res, err := eng.Run(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))

	require.NotNil(t, res)
	assert.Equal(t, core.RunStatusFailed, res.Run.Status)
	assert.NotEmpty(t, res.Run.Error)

	latest, err := eng.Store().GetLatestRun()
	require.NoError(t, err)
	assert.Equal(t, res.Run.ID, latest.ID)
}

func TestEngine_RunMissingManifest(t *testing.T) {
	a := testutil.WriteArtifacts(t)
	require.NoError(t, os.Remove(a.Manifest))
	eng, _ := newTestEngine(t, a)

	res, err := eng.Run(context.Background())
	assert.True(t, errors.Is(err, blob.ErrNotFound))
	assert.Equal(t, core.RunStatusFailed, res.Run.Status)
}

func TestEngine_RunSinkFailure(t *testing.T) {
	a := testutil.WriteArtifacts(t)
	eng, cfg := newTestEngine(t, a)
	cfg.Sink.URI = "ftp://nowhere/events.json"

	res, err := eng.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write sink")
	assert.Equal(t, core.RunStatusFailed, res.Run.Status)
	assert.NotNil(t, res.Result)
}

func TestEngine_RunInvalidConfig(t *testing.T) {
	a := testutil.WriteArtifacts(t)
	eng, cfg := newTestEngine(t, a)
	cfg.Manifest = ""

	_, err := eng.Run(context.Background())
	var ce *core.ConfigurationError
	require.ErrorAs(t, err, &ce)

	runs, err := eng.Store().ListRuns(0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestResolveRun(t *testing.T) {
	a := testutil.WriteArtifacts(t)
	eng, _ := newTestEngine(t, a)

	_, err := ResolveRun(eng.Store(), "")
	assert.ErrorIs(t, err, ErrNoRuns)

	first, err := eng.Run(context.Background())
	require.NoError(t, err)
	second, err := eng.Run(context.Background())
	require.NoError(t, err)

	run, err := ResolveRun(eng.Store(), "latest")
	require.NoError(t, err)
	assert.Equal(t, second.Run.ID, run.ID)

	run, err = ResolveRun(eng.Store(), first.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Run.ID, run.ID)
	assert.GreaterOrEqual(t, Elapsed(run), time.Duration(0))
}

func TestLoadGraph(t *testing.T) {
	a := testutil.WriteArtifacts(t)
	eng, _ := newTestEngine(t, a)
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	g, err := LoadGraph(eng.Store(), res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, g.NodeCount())
	assert.Equal(t, 5, g.EdgeCount())

	cyclic, _ := g.HasCycle()
	assert.False(t, cyclic)

	metric, err := FindEntity(g, "metric.proj.total_events")
	require.NoError(t, err)
	assert.Equal(t, core.EntityTypeMetric, metric.Type())
	assert.NotEmpty(t, g.Upstream(metric.ID, 0))
	assert.Empty(t, g.Downstream(metric.ID, 0))

	_, err = FindEntity(g, "nope")
	assert.Error(t, err)

	byID, err := FindEntity(g, string(metric.ID))
	require.NoError(t, err)
	assert.Equal(t, metric.ID, byID.ID)
}

func TestEngine_Watch(t *testing.T) {
	a := testutil.WriteArtifacts(t)
	eng, _ := newTestEngine(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan *RunResult, 4)
	done := make(chan error, 1)
	go func() {
		done <- eng.Watch(ctx, 20*time.Millisecond, func(res *RunResult, err error) {
			if err == nil {
				results <- res
			}
		})
	}()

	// fsnotify needs the watch registered before the write
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case res := <-results:
			assert.Equal(t, core.RunStatusCompleted, res.Run.Status)
			cancel()
			require.NoError(t, <-done)
			return
		case <-tick.C:
			require.NoError(t, os.WriteFile(a.Manifest, []byte(testutil.ManifestV7), 0o600))
		case <-deadline:
			t.Fatal("no run triggered by artifact change")
		}
	}
}

func TestEngine_WatchRemoteOnly(t *testing.T) {
	a := testutil.WriteArtifacts(t)
	eng, cfg := newTestEngine(t, a)
	cfg.Manifest, cfg.Catalog, cfg.RunResults = "s3://bucket/manifest.json", "", ""

	err := eng.Watch(context.Background(), time.Millisecond, func(*RunResult, error) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to watch")
}

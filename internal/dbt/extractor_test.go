package dbt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapmeta/internal/blob"
	"github.com/leapstack-labs/leapmeta/internal/config"
	"github.com/leapstack-labs/leapmeta/internal/testutil"
	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractConfig(a testutil.Artifacts) *config.Config {
	cfg := &config.Config{Manifest: a.Manifest, Catalog: a.Catalog, RunResults: a.RunResults}
	cfg.ApplyDefaults()
	return cfg
}

func TestExtractor_Extract(t *testing.T) {
	a := testutil.WriteArtifacts(t)
	logger, logs := testutil.NewCaptureLogger()
	ex := NewExtractor(extractConfig(a), blob.NewResolver(config.StorageConfig{}, nil), logger)

	res, err := ex.Extract(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Entities.Datasets, 2)
	assert.Len(t, res.Entities.VirtualViews, 2)
	assert.Len(t, res.Entities.Metrics, 1)
	assert.Len(t, res.ManifestHash, 16)
	assert.Equal(t, 2, res.Catalog)
	assert.Equal(t, 1, res.RunResults)

	events := res.Events()
	require.Len(t, events, 5)
	assert.Equal(t, core.EntityTypeDataset, events[0].EntityType())
	assert.Equal(t, core.EntityTypeMetric, events[4].EntityType())

	// dataset upstream, summary view (source + model), staging view, metric
	assert.Len(t, res.Edges(), 5)

	var infos []string
	for _, r := range logs.Records() {
		infos = append(infos, r.Message)
	}
	assert.Contains(t, infos, "extraction complete")
}

func TestExtractor_ManifestOnly(t *testing.T) {
	a := testutil.WriteArtifacts(t)
	cfg := extractConfig(a)
	cfg.Catalog, cfg.RunResults = "", ""

	res, err := NewExtractor(cfg, blob.NewResolver(config.StorageConfig{}, nil), nil).Extract(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Catalog)
	assert.Zero(t, res.RunResults)
	for _, ds := range res.Entities.Datasets {
		assert.Nil(t, ds.Statistics)
	}
}

func TestExtractor_Errors(t *testing.T) {
	a := testutil.WriteArtifacts(t)

	t.Run("missing manifest", func(t *testing.T) {
		cfg := extractConfig(a)
		cfg.Manifest = filepath.Join(a.Dir, "absent.json")
		_, err := NewExtractor(cfg, blob.NewResolver(config.StorageConfig{}, nil), nil).Extract(context.Background())
		assert.True(t, errors.Is(err, blob.ErrNotFound))
	})

	t.Run("manifest is not an object", func(t *testing.T) {
		cfg := extractConfig(a)
		cfg.Manifest = filepath.Join(a.Dir, "list.json")
		require.NoError(t, os.WriteFile(cfg.Manifest, []byte("[]"), 0o600))
		_, err := NewExtractor(cfg, blob.NewResolver(config.StorageConfig{}, nil), nil).Extract(context.Background())
		require.Error(t, err)
		assert.True(t, core.IsFatal(err))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewExtractor(extractConfig(a), cancelledReader{}, nil).Extract(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type cancelledReader struct{}

func (cancelledReader) Read(ctx context.Context, _ string) ([]byte, error) {
	return nil, ctx.Err()
}

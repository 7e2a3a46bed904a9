package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leapmeta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("manifest", "", "manifest location")
	flags.String("sink", "", "sink location")
	flags.String("sink-format", "", "sink format")
	flags.String("state", "", "state database")
	flags.Int("max-concurrency", 0, "parallel fetches")
	flags.BoolP("verbose", "v", false, "verbose")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfgPath := writeConfig(t, "manifest: s3://bucket/manifest.json\n")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, "s3://bucket/manifest.json", cfg.Manifest)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, "json", cfg.Sink.Format)
	assert.Equal(t, "us-east-1", cfg.Storage.S3.Region)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultWatchDebounce, cfg.WatchDebounce)
	assert.Equal(t, DefaultServeAddr, cfg.Serve.Addr)
	assert.Equal(t, filepath.Join(filepath.Dir(cfgPath), ".leapmeta/state.db"), cfg.StatePath)
	assert.Equal(t, cfgPath, GetConfigFileUsed())
}

func TestLoadConfig_File(t *testing.T) {
	cfgPath := writeConfig(t, `manifest: target/manifest.json
catalog: target/catalog.json
platform: snowflake
account: acme
meta_ownerships:
  - meta_key: owner
    ownership_type: Data Steward
    email_domain: acme.com
meta_tags:
  - meta_key: pii
    meta_value_matcher: "true"
    tag_type: PII
sink:
  uri: out/events.yaml
  format: yaml
watch_debounce: 2s
serve:
  read_timeout: 1m
`)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	dir := filepath.Dir(cfgPath)
	assert.Equal(t, filepath.Join(dir, "target/manifest.json"), cfg.Manifest)
	assert.Equal(t, filepath.Join(dir, "target/catalog.json"), cfg.Catalog)
	assert.Equal(t, filepath.Join(dir, "out/events.yaml"), cfg.Sink.URI)
	assert.Equal(t, "yaml", cfg.Sink.Format)
	assert.Equal(t, "snowflake", cfg.Platform)
	require.Len(t, cfg.MetaOwnerships, 1)
	assert.Equal(t, "Data Steward", cfg.MetaOwnerships[0].OwnershipType)
	require.Len(t, cfg.MetaTags, 1)
	assert.Equal(t, "PII", cfg.MetaTags[0].TagType)
	assert.Equal(t, 2*time.Second, cfg.WatchDebounce)
	assert.Equal(t, time.Minute, cfg.Serve.ReadTimeout)
	assert.NoError(t, cfg.ExtractConfig.Validate())
}

func TestLoadConfig_URIsAreNotResolved(t *testing.T) {
	cfgPath := writeConfig(t, "manifest: gs://bucket/manifest.json\nsink:\n  uri: az://c/out.json\n")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "gs://bucket/manifest.json", cfg.Manifest)
	assert.Equal(t, "az://c/out.json", cfg.Sink.URI)
}

func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	cfgPath := writeConfig(t, "manifest: /from/file.json\nmax_concurrency: 2\n")
	t.Setenv("LEAPMETA_MANIFEST", "/from/env.json")
	t.Setenv("LEAPMETA_MAX_CONCURRENCY", "8")
	t.Setenv("LEAPMETA_SINK__FORMAT", "jsonl")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, "/from/env.json", cfg.Manifest)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, "jsonl", cfg.Sink.Format)
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	cfgPath := writeConfig(t, "manifest: /from/file.json\n")
	t.Setenv("LEAPMETA_MANIFEST", "/from/env.json")

	flags := newFlags()
	require.NoError(t, flags.Set("manifest", "/from/flag.json"))
	require.NoError(t, flags.Set("sink", "-"))
	require.NoError(t, flags.Set("sink-format", "yaml"))
	require.NoError(t, flags.Set("state", ":memory:"))
	require.NoError(t, flags.Set("max-concurrency", "1"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	assert.Equal(t, "/from/flag.json", cfg.Manifest)
	assert.Equal(t, "-", cfg.Sink.URI)
	assert.Equal(t, "yaml", cfg.Sink.Format)
	assert.Equal(t, ":memory:", cfg.StatePath)
	assert.Equal(t, 1, cfg.MaxConcurrency)
}

func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	cfgPath := writeConfig(t, "manifest: /from/file.json\n")
	t.Setenv("LEAPMETA_MANIFEST", "/from/env.json")

	cfg, err := LoadConfig(cfgPath, newFlags())
	require.NoError(t, err)
	assert.Equal(t, "/from/env.json", cfg.Manifest)
}

func TestLoadConfig_ExpandsEnvReferences(t *testing.T) {
	cfgPath := writeConfig(t, "manifest: s3://b/m.json\nstorage:\n  s3:\n    access_key_id: ${TEST_LEAPMETA_KEY}\n")
	t.Setenv("TEST_LEAPMETA_KEY", "AKIA123")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "AKIA123", cfg.Storage.S3.AccessKeyID)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{name: "bad output", content: "output: html\n", field: "output"},
		{name: "bad log format", content: "log_format: xml\n", field: "log_format"},
		{name: "negative debounce", content: "watch_debounce: -1s\n", field: "watch_debounce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content), nil)
			var ce *core.ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestFlagKey(t *testing.T) {
	tests := map[string]string{
		"state":           "state_path",
		"sink":            "sink.uri",
		"sink-format":     "sink.format",
		"run-results":     "run_results",
		"max-concurrency": "max_concurrency",
		"docs-base-url":   "docs_base_url",
		"verbose":         "verbose",
	}
	for flag, want := range tests {
		assert.Equal(t, want, FlagKey(flag), flag)
	}
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := NewLogger(&Config{Verbose: true}, os.Stderr)
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
	assert.True(t, logger.Enabled(ctx, -4))
}

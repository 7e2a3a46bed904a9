package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	sharedcfg "github.com/leapstack-labs/leapmeta/internal/config"
	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// EnvPrefix prefixes environment variables read into the configuration.
// A double underscore separates nesting levels: LEAPMETA_SINK__URI -> sink.uri.
const EnvPrefix = "LEAPMETA_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps flags whose names differ from their config keys.
var flagKeys = map[string]string{
	"state":       "state_path",
	"sink":        "sink.uri",
	"sink-format": "sink.format",
	"addr":        "serve.addr",
}

var configFileUsed string

// findConfigFile finds the config file to use.
// Priority: explicit path > leapmeta.yaml in CWD or a parent directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if path := sharedcfg.FindConfigFile(dir); path != "" {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a local path relative to baseDir.
// Empty, absolute and URI locations are returned unchanged.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) || strings.Contains(path, "://") {
		return path
	}
	return filepath.Join(baseDir, path)
}

func defaults() map[string]any {
	return map[string]any{
		"max_concurrency":     sharedcfg.DefaultMaxConcurrency,
		"sink.format":         sharedcfg.DefaultSinkFormat,
		"state_path":          sharedcfg.DefaultStateFile,
		"storage.s3.region":   sharedcfg.DefaultS3Region,
		"verbose":             false,
		"output":              DefaultOutput,
		"log_format":          DefaultLogFormat,
		"watch_debounce":      DefaultWatchDebounce.String(),
		"serve.addr":          DefaultServeAddr,
		"serve.read_timeout":  DefaultServeTimeout.String(),
		"serve.write_timeout": DefaultServeTimeout.String(),
	}
}

// LoadConfig loads configuration from defaults, file, environment variables
// and flags. Precedence (highest to lowest): flags > env vars > config file > defaults.
// Only flags that were explicitly set override lower layers.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// Paths from the file are relative to the file, paths from env and
	// flags to the working directory
	if configFileUsed != "" {
		base := filepath.Dir(configFileUsed)
		for _, key := range []string{"manifest", "catalog", "run_results", "state_path", "sink.uri"} {
			if k.Exists(key) {
				_ = k.Set(key, resolvePathRelativeTo(k.String(key), base))
			}
		}
	}

	// 3. Environment variables: LEAPMETA_RUN_RESULTS -> run_results
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return FlagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ApplyDefaults()
	cfg.ExpandEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps LEAPMETA_SINK__FORMAT to sink.format.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// FlagKey maps a flag name to its config key.
func FlagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", "_")
}

// Validate checks the CLI-only settings. Extraction settings are validated
// by the commands that extract, since other commands run without a manifest.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case "", "auto", "text", "markdown", "json":
	default:
		return &core.ConfigurationError{Field: "output", Reason: fmt.Sprintf("unknown output format %q (auto, text, markdown, json)", c.OutputFormat)}
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return &core.ConfigurationError{Field: "log_format", Reason: fmt.Sprintf("unknown log format %q (text, json)", c.LogFormat)}
	}
	if c.WatchDebounce < 0 {
		return &core.ConfigurationError{Field: "watch_debounce", Reason: "must not be negative"}
	}
	return nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// NewLogger creates the CLI logger writing to w. Verbose enables debug
// records; otherwise only warnings and errors are logged.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// configKey is used to store the loaded config in context.
type configKey struct{}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context, falling back to
// defaults when none was loaded.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	cfg := &Config{
		OutputFormat:  DefaultOutput,
		LogFormat:     DefaultLogFormat,
		WatchDebounce: DefaultWatchDebounce,
		Serve: ServeConfig{
			Addr:         DefaultServeAddr,
			ReadTimeout:  DefaultServeTimeout,
			WriteTimeout: DefaultServeTimeout,
		},
	}
	cfg.StatePath = sharedcfg.DefaultStateFile
	cfg.ApplyDefaults()
	return cfg
}

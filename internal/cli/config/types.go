// Package config provides configuration management for the leapmeta CLI.
//
// It extends the extraction configuration of internal/config with
// CLI-only settings (verbosity, output mode, log format, serve and watch
// options) and layers defaults, a YAML file, LEAPMETA_ environment
// variables and command-line flags on top of each other.
package config

import (
	"time"

	sharedcfg "github.com/leapstack-labs/leapmeta/internal/config"
)

// ExtractConfig is an alias for the shared extraction configuration.
type ExtractConfig = sharedcfg.Config

// Config holds all CLI configuration options.
type Config struct {
	ExtractConfig `koanf:",squash"`

	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`
	LogFormat    string `koanf:"log_format"`

	// WatchDebounce is how long extract --watch waits for writes to settle
	WatchDebounce time.Duration `koanf:"watch_debounce"`

	Serve ServeConfig `koanf:"serve"`
}

// ServeConfig holds configuration for the HTTP server.
type ServeConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// Default configuration values.
const (
	DefaultOutput        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogFormat     = "text"
	DefaultWatchDebounce = 500 * time.Millisecond
	DefaultServeAddr     = "127.0.0.1:8766"
	DefaultServeTimeout  = 15 * time.Second
)

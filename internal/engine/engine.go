// Package engine orchestrates extraction runs.
// A run fetches the dbt artifacts, parses them into entities, records the
// entities and their lineage in the state store, and writes the change
// events to the configured sink.
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/leapstack-labs/leapmeta/internal/blob"
	"github.com/leapstack-labs/leapmeta/internal/config"
	"github.com/leapstack-labs/leapmeta/internal/state"
	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// Engine runs extractions against one configuration and state store.
type Engine struct {
	cfg      *config.Config
	store    core.Store
	resolver *blob.Resolver
	stdout   io.Writer
	logger   *slog.Logger

	// ownsStore is set when the engine opened the store itself
	ownsStore bool
}

// Config holds engine configuration.
type Config struct {
	// Extract is the extraction configuration
	Extract *config.Config
	// Store is the state store; when nil a SQLite store is opened at
	// Extract.StatePath
	Store core.Store
	// Resolver reads artifacts and writes the sink; built from
	// Extract.Storage when nil
	Resolver *blob.Resolver
	// Stdout receives events when the sink is standard output
	// (defaults to os.Stdout)
	Stdout io.Writer
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine, opening and migrating the state store if needed.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Extract == nil {
		return nil, &core.ConfigurationError{Field: "extract", Reason: "configuration is required"}
	}

	e := &Engine{
		cfg:      cfg.Extract,
		store:    cfg.Store,
		resolver: cfg.Resolver,
		stdout:   cfg.Stdout,
		logger:   logger,
	}
	if e.stdout == nil {
		e.stdout = os.Stdout
	}
	if e.resolver == nil {
		e.resolver = blob.NewResolver(cfg.Extract.Storage, logger)
	}
	if e.store == nil {
		store, err := OpenStore(cfg.Extract.StatePath, logger)
		if err != nil {
			return nil, err
		}
		e.store = store
		e.ownsStore = true
	}

	logger.Debug("initialized engine", "manifest", cfg.Extract.Manifest, "state", cfg.Extract.StatePath)
	return e, nil
}

// OpenStore opens and migrates the SQLite state store at path.
func OpenStore(path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}
	return store, nil
}

// Store returns the state store.
func (e *Engine) Store() core.Store {
	return e.store
}

// Close closes the state store if the engine opened it.
func (e *Engine) Close() error {
	if e.ownsStore {
		return e.store.Close()
	}
	return nil
}

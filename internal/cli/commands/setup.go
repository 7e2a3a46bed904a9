package commands

import (
	"io"
	"log/slog"

	"github.com/leapstack-labs/leapmeta/internal/cli/config"
	"github.com/leapstack-labs/leapmeta/internal/cli/output"
	"github.com/leapstack-labs/leapmeta/internal/engine"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for command execution.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	eng, err := engine.New(engine.Config{
		Extract: &cfg.ExtractConfig,
		Stdout:  cmd.OutOrStdout(),
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = eng.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: newRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg),
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need the state store.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: newRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg),
	}
}

func newRenderer(out, errOut io.Writer, cfg *config.Config) *output.Renderer {
	return output.NewRenderer(out, errOut, output.Mode(cfg.OutputFormat))
}

package commands

import (
	"github.com/leapstack-labs/leapmeta/internal/ui"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Watch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run history, entities and lineage over HTTP",
		Long: `Start an HTTP server exposing the state database as a JSON API:

  GET /api/runs                              recent runs
  GET /api/runs/{id}                         one run ("latest" allowed)
  GET /api/runs/{id}/entities                entities (?type=dataset)
  GET /api/runs/{id}/entities/{entity}       change event of one entity
  GET /api/runs/{id}/edges                   lineage edges
  GET /api/runs/{id}/lineage/{entity}        ?direction=upstream|downstream&depth=N
  GET /api/events                            Server-Sent Events for new runs

With --watch the server also re-extracts whenever local artifacts change.`,
		Example: `  # Serve on the default address
  leapmeta serve

  # Serve on all interfaces and re-extract on artifact changes
  leapmeta serve --addr :8766 --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default 127.0.0.1:8766)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-extract when local artifacts change")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	if opts.Watch {
		if err := cfg.ExtractConfig.Validate(); err != nil {
			return err
		}
	}

	srv := ui.NewServer(ui.Config{
		Engine:       cmdCtx.Engine,
		Addr:         cfg.Serve.Addr,
		Watch:        opts.Watch,
		Debounce:     cfg.WatchDebounce,
		ReadTimeout:  cfg.Serve.ReadTimeout,
		WriteTimeout: cfg.Serve.WriteTimeout,
		Logger:       cmdCtx.Logger,
	})
	cmdCtx.Renderer.Printf("Serving on http://%s\n", cfg.Serve.Addr)
	return srv.Serve(cmd.Context())
}

package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapmeta/internal/cli/output"
	"github.com/leapstack-labs/leapmeta/internal/engine"
	"github.com/spf13/cobra"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Run        string
	Upstream   bool
	Downstream bool
	Depth      int
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage <entity>",
		Short: "Show lineage for an entity",
		Long: `Display the upstream sources and downstream consumers of an entity
recorded by an extraction run.

The entity is given by its ID or by its name (for example the dbt unique_id
of a model or metric, or the qualified name of a dataset).`,
		Example: `  # Show full lineage for a model
  leapmeta lineage model.jaffle_shop.orders

  # Show only upstream entities
  leapmeta lineage model.jaffle_shop.orders --downstream=false

  # Limit traversal depth
  leapmeta lineage metric.jaffle_shop.revenue --depth 1

  # Output as JSON
  leapmeta lineage model.jaffle_shop.orders --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Run, "run", "latest", "Run ID to read lineage from")
	cmd.Flags().BoolVar(&opts.Upstream, "upstream", true, "Include upstream entities")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", true, "Include downstream entities")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Max traversal depth (0 = unlimited)")

	return cmd
}

func runLineage(cmd *cobra.Command, ref string, opts *LineageOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cmdCtx.Engine.Store()
	run, err := engine.ResolveRun(store, opts.Run)
	if err != nil {
		return err
	}
	g, err := engine.LoadGraph(store, run.ID)
	if err != nil {
		return err
	}
	node, err := engine.FindEntity(g, ref)
	if err != nil {
		return err
	}

	var dir engine.Direction
	switch {
	case opts.Upstream && opts.Downstream:
		dir = engine.DirectionBoth
	case opts.Upstream:
		dir = engine.DirectionUpstream
	case opts.Downstream:
		dir = engine.DirectionDownstream
	default:
		return fmt.Errorf("nothing to show: both --upstream and --downstream are disabled")
	}

	return renderLineage(cmdCtx.Renderer, engine.NewLineageView(g, node, dir, opts.Depth), dir)
}

func renderLineage(r *output.Renderer, v engine.LineageView, dir engine.Direction) error {
	mode := r.EffectiveMode()
	if mode == output.ModeJSON {
		return r.JSON(v)
	}

	r.Header(1, "Lineage for "+v.Root.Name)
	r.KeyValue("ID", string(v.Root.ID))
	r.KeyValue("Type", string(v.Root.Type))
	r.Println()

	sections := []struct {
		title    string
		entities []engine.EntityView
		show     bool
	}{
		{"Upstream", v.Upstream, dir != engine.DirectionDownstream},
		{"Downstream", v.Downstream, dir != engine.DirectionUpstream},
	}
	for _, s := range sections {
		if !s.show {
			continue
		}
		title := fmt.Sprintf("%s (%d)", s.title, len(s.entities))
		if mode == output.ModeText {
			r.Println(r.Styles().Bold.Render(title))
			for _, e := range s.entities {
				r.Printf("  - %s %s\n", e.Name, r.Muted("["+string(e.Type)+"]"))
			}
		} else {
			r.Println(output.FormatHeader(2, title))
			r.Println()
			for _, e := range s.entities {
				r.Printf("- %s (`%s`)\n", e.Name, e.Type)
			}
		}
		r.Println()
	}
	return nil
}

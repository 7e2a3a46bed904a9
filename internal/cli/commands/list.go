package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leapmeta/internal/cli/output"
	"github.com/leapstack-labs/leapmeta/internal/engine"
	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/spf13/cobra"
)

// ListOptions holds options for the list command.
type ListOptions struct {
	Run   string
	Type  string
	Limit int
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list [entities|runs]",
		Short: "List extracted entities or extraction runs",
		Long: `List the entities recorded by an extraction run, or the run history.

Output adapts to environment:
  - Terminal: Styled tables
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List entities of the latest run
  leapmeta list

  # List only datasets
  leapmeta list entities --type dataset

  # List the last 5 runs as JSON
  leapmeta list runs --limit 5 --output json`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"entities", "runs"},
		RunE: func(cmd *cobra.Command, args []string) error {
			what := "entities"
			if len(args) == 1 {
				what = args[0]
			}
			return runList(cmd, what, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Run, "run", "latest", "Run ID to list entities of")
	cmd.Flags().StringVar(&opts.Type, "type", "", "Entity type filter (dataset|virtual_view|metric)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Max runs to list (0 = all)")

	return cmd
}

func runList(cmd *cobra.Command, what string, opts *ListOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cmdCtx.Engine.Store()
	r := cmdCtx.Renderer

	if what == "runs" {
		runs, err := store.ListRuns(opts.Limit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		return renderRuns(r, runs)
	}

	run, err := engine.ResolveRun(store, opts.Run)
	if err != nil {
		return err
	}
	records, err := store.ListEntities(run.ID)
	if err != nil {
		return fmt.Errorf("failed to list entities: %w", err)
	}
	typ := core.EntityType(strings.ToUpper(opts.Type))
	return renderEntities(r, run, engine.NewEntityViews(records, typ))
}

func renderRuns(r *output.Renderer, runs []*core.Run) error {
	views := make([]engine.RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, engine.NewRunView(run))
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(views)
	}

	r.Header(1, fmt.Sprintf("Runs (%d)", len(views)))
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		status := string(v.Status)
		if r.EffectiveMode() == output.ModeText {
			status = r.Styles().Status(v.Status).Render(status)
		}
		rows = append(rows, []string{
			v.ID,
			status,
			v.StartedAt.Local().Format(time.DateTime),
			fmt.Sprintf("%d", v.Warnings),
			v.ManifestURI,
		})
	}
	r.Table([]string{"ID", "Status", "Started", "Warnings", "Manifest"}, rows)
	return nil
}

// EntityListView is the JSON output of list entities.
type EntityListView struct {
	Run      engine.RunView      `json:"run"`
	Entities []engine.EntityView `json:"entities"`
	ByType   map[string]int      `json:"byType"`
}

func renderEntities(r *output.Renderer, run *core.Run, entities []engine.EntityView) error {
	byType := make(map[string]int)
	for _, e := range entities {
		byType[string(e.Type)]++
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(EntityListView{Run: engine.NewRunView(run), Entities: entities, ByType: byType})
	}

	r.Header(1, fmt.Sprintf("Entities (%d total)", len(entities)))
	r.KeyValue("Run", fmt.Sprintf("%s (%s)", run.ID, run.Status))
	r.Println()

	rows := make([][]string, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, []string{string(e.Type), e.Name, string(e.ID)})
	}
	r.Table([]string{"Type", "Name", "ID"}, rows)
	return nil
}

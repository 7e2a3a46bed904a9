package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapmeta/internal/cli/output"
	"github.com/leapstack-labs/leapmeta/internal/dbt"
	"github.com/leapstack-labs/leapmeta/internal/engine"
	"github.com/leapstack-labs/leapmeta/internal/sink"
	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/spf13/cobra"
)

// ExtractOptions holds options for the extract command.
type ExtractOptions struct {
	Watch bool
}

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	opts := &ExtractOptions{}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract metadata from dbt artifacts",
		Long: `Read a dbt manifest (and optionally catalog.json and run_results.json),
turn models, sources, tests and metrics into catalog entities with lineage,
and write them as metadata change events to the sink.

Every run is recorded in the state database. Recoverable problems such as
references to unknown nodes are reported as warnings and mark the run
degraded; unsupported or malformed documents fail it.

Artifacts and the sink may be local paths or s3://, gs:// and az:// URIs.`,
		Example: `  # Extract using leapmeta.yaml
  leapmeta extract

  # Extract a manifest from S3 into a local JSON lines file
  leapmeta extract --manifest s3://dbt-artifacts/prod/manifest.json \
    --sink events.jsonl --sink-format jsonl

  # Re-extract whenever dbt rewrites the artifacts
  leapmeta extract --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtract(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-extract when local artifacts change")

	return cmd
}

func runExtract(cmd *cobra.Command, opts *ExtractOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cmdCtx.Cfg.ExtractConfig.Validate(); err != nil {
		return err
	}

	// Events written to stdout must not mix with the summary
	r := cmdCtx.Renderer
	if uri := cmdCtx.Cfg.Sink.URI; uri == "" || uri == sink.Stdout {
		r = output.NewRenderer(cmd.ErrOrStderr(), cmd.ErrOrStderr(), output.Mode(cmdCtx.Cfg.OutputFormat))
	}

	res, runErr := cmdCtx.Engine.Run(cmd.Context())
	if err := renderExtract(r, res, runErr); err != nil {
		return err
	}

	if !opts.Watch {
		return runErr
	}
	return cmdCtx.Engine.Watch(cmd.Context(), cmdCtx.Cfg.WatchDebounce, func(res *engine.RunResult, err error) {
		if rerr := renderExtract(r, res, err); rerr != nil {
			cmdCtx.Logger.Error("failed to render run", "error", rerr)
		}
	})
}

// ExtractView is the JSON output of the extract command.
type ExtractView struct {
	Run         *engine.RunView  `json:"run,omitempty"`
	Report      *ReportView      `json:"report,omitempty"`
	Sink        string           `json:"sink,omitempty"`
	Entities    int              `json:"entities"`
	Edges       int              `json:"edges"`
	Diagnostics []DiagnosticView `json:"diagnostics"`
	Error       *string          `json:"error,omitempty"`
}

// ReportView summarizes the parse of a manifest.
type ReportView struct {
	SchemaVersion string            `json:"schemaVersion"`
	Platform      core.DataPlatform `json:"platform"`
	Sources       int               `json:"sources"`
	Macros        int               `json:"macros"`
	Models        int               `json:"models"`
	Tests         int               `json:"tests"`
	Metrics       int               `json:"metrics"`
	SkippedModels int               `json:"skippedModels"`
	SkippedTests  int               `json:"skippedTests"`
	Catalog       int               `json:"catalogRelations"`
	RunResults    int               `json:"testResults"`
}

// DiagnosticView is one parse diagnostic.
type DiagnosticView struct {
	Severity string `json:"severity"`
	Node     string `json:"node"`
	Message  string `json:"message"`
}

func newExtractView(res *engine.RunResult, runErr error) ExtractView {
	v := ExtractView{Diagnostics: []DiagnosticView{}}
	if runErr != nil {
		msg := runErr.Error()
		v.Error = &msg
	}
	if res == nil {
		return v
	}
	if res.Run != nil {
		rv := engine.NewRunView(res.Run)
		v.Run = &rv
	}
	v.Sink = res.Sink
	if res.Result == nil || res.Result.Report == nil {
		return v
	}
	v.Report = newReportView(res.Result)
	v.Entities = res.Result.Entities.Len()
	v.Edges = len(res.Result.Edges())
	for _, d := range res.Result.Report.Diagnostics {
		msg := d.Message
		if d.Err != nil {
			msg = d.Err.Error()
		}
		v.Diagnostics = append(v.Diagnostics, DiagnosticView{Severity: d.Severity.String(), Node: d.Node, Message: msg})
	}
	return v
}

func newReportView(res *dbt.Result) *ReportView {
	rep := res.Report
	return &ReportView{
		SchemaVersion: rep.SchemaVersion,
		Platform:      rep.Platform,
		Sources:       rep.Sources,
		Macros:        rep.Macros,
		Models:        rep.Models,
		Tests:         rep.Tests,
		Metrics:       rep.Metrics,
		SkippedModels: rep.SkippedModels,
		SkippedTests:  rep.SkippedTests,
		Catalog:       res.Catalog,
		RunResults:    res.RunResults,
	}
}

// renderExtract renders the outcome of a run in the renderer's mode.
func renderExtract(r *output.Renderer, res *engine.RunResult, runErr error) error {
	v := newExtractView(res, runErr)
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(v)
	case output.ModeMarkdown:
		extractMarkdown(r, v)
	default:
		extractText(r, v)
	}
	return nil
}

func extractText(r *output.Renderer, v ExtractView) {
	styles := r.Styles()

	status := core.RunStatusFailed
	if v.Run != nil {
		status = v.Run.Status
	}
	r.Printf("%s %s\n", styles.Bold.Render("Extraction"), styles.Status(status).Render(string(status)))
	if v.Run != nil {
		r.KeyValue("Run", styles.EntityID.Render(v.Run.ID))
		r.KeyValue("Manifest", v.Run.ManifestURI)
	}
	if v.Report != nil {
		r.KeyValue("Schema", fmt.Sprintf("%s (%s)", v.Report.SchemaVersion, v.Report.Platform))
		r.KeyValue("Nodes", nodeSummary(v.Report))
		r.KeyValue("Entities", fmt.Sprintf("%d entities, %d lineage edges", v.Entities, v.Edges))
	}
	if v.Sink != "" {
		r.KeyValue("Sink", v.Sink)
	}
	if v.Run != nil && v.Run.DurationMS > 0 {
		r.KeyValue("Duration", fmt.Sprintf("%dms", v.Run.DurationMS))
	}

	if len(v.Diagnostics) > 0 {
		r.Println()
		r.Println(styles.Bold.Render(fmt.Sprintf("Diagnostics (%d)", len(v.Diagnostics))))
		for _, d := range v.Diagnostics {
			sev, _ := core.ParseSeverity(d.Severity)
			r.Printf("  %s %s %s\n", styles.Severity(sev).Render(d.Severity), styles.Muted.Render(d.Node), d.Message)
		}
	}
	if v.Error != nil {
		r.Error(*v.Error)
	}
}

func extractMarkdown(r *output.Renderer, v ExtractView) {
	status := core.RunStatusFailed
	if v.Run != nil {
		status = v.Run.Status
	}
	r.Println(output.FormatHeader(1, "Extraction "+string(status)))
	r.Println()
	if v.Run != nil {
		r.Println(output.FormatKeyValue("Run", v.Run.ID))
		r.Println(output.FormatKeyValue("Manifest", v.Run.ManifestURI))
	}
	if v.Report != nil {
		r.Println(output.FormatKeyValue("Schema", fmt.Sprintf("%s (%s)", v.Report.SchemaVersion, v.Report.Platform)))
		r.Println(output.FormatKeyValue("Nodes", nodeSummary(v.Report)))
		r.Println(output.FormatKeyValue("Entities", fmt.Sprintf("%d entities, %d lineage edges", v.Entities, v.Edges)))
	}
	if v.Sink != "" {
		r.Println(output.FormatKeyValue("Sink", v.Sink))
	}
	if v.Error != nil {
		r.Println(output.FormatKeyValue("Error", *v.Error))
	}

	if len(v.Diagnostics) > 0 {
		r.Println()
		r.Println(output.FormatHeader(2, "Diagnostics"))
		r.Println()
		rows := make([][]string, 0, len(v.Diagnostics))
		for _, d := range v.Diagnostics {
			rows = append(rows, []string{d.Severity, d.Node, d.Message})
		}
		r.Table([]string{"Severity", "Node", "Message"}, rows)
	}
}

func nodeSummary(rep *ReportView) string {
	parts := []string{
		fmt.Sprintf("%d sources", rep.Sources),
		fmt.Sprintf("%d models", rep.Models),
		fmt.Sprintf("%d tests", rep.Tests),
		fmt.Sprintf("%d metrics", rep.Metrics),
	}
	if skipped := rep.SkippedModels + rep.SkippedTests; skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", skipped))
	}
	return strings.Join(parts, ", ")
}

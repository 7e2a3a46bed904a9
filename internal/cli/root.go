// Package cli provides the command-line interface for leapmeta.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/leapstack-labs/leapmeta/internal/cli/commands"
	"github.com/leapstack-labs/leapmeta/internal/cli/config"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "leapmeta",
		Short: "leapmeta - dbt metadata extractor",
		Long: `leapmeta reads the artifacts dbt writes (manifest.json, catalog.json and
run_results.json) and turns them into catalog entities: datasets for sources
and materialized models, virtual views for models, and metrics, connected by
lineage edges.

Entities are written as metadata change events to a file, object storage or
stdout. Every extraction is recorded in a local state database that the list,
lineage and serve commands read from.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg, cmd.ErrOrStderr())

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = config.WithConfig(ctx, cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", configFile)
				}
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./leapmeta.yaml)")
	pf.String("manifest", "", "Path or URI of manifest.json")
	pf.String("catalog", "", "Path or URI of catalog.json")
	pf.String("run-results", "", "Path or URI of run_results.json")
	pf.String("platform", "", "Target platform override (e.g. snowflake, bigquery)")
	pf.String("account", "", "Platform account or instance")
	pf.String("docs-base-url", "", "Base URL of the hosted dbt docs")
	pf.String("project-source-url", "", "Base URL of the dbt project repository")
	pf.String("sink", "", "Destination for change events: path, URI or - for stdout")
	pf.String("sink-format", "", "Sink encoding (json|jsonl|yaml)")
	pf.String("state", "", "Path to state database")
	pf.Int("max-concurrency", 0, "Max artifacts read in parallel")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json)")
	pf.String("log-format", "", "Log format (text|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("sink-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "jsonl", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit, BuildDate))
	rootCmd.AddCommand(commands.NewExtractCommand())
	rootCmd.AddCommand(commands.NewListCommand())
	rootCmd.AddCommand(commands.NewLineageCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for leapmeta.

To load completions:

Bash:
  $ source <(leapmeta completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ leapmeta completion bash > /etc/bash_completion.d/leapmeta
  # macOS:
  $ leapmeta completion bash > $(brew --prefix)/etc/bash_completion.d/leapmeta

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ leapmeta completion zsh > "${fpath[1]}/_leapmeta"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ leapmeta completion fish | source

  # To load completions for each session, execute once:
  $ leapmeta completion fish > ~/.config/fish/completions/leapmeta.fish

PowerShell:
  PS> leapmeta completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> leapmeta completion powershell > leapmeta.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}

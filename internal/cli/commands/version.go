package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display leapmeta version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "leapmeta v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "dbt metadata extractor (commit %s, built %s)\n", commit, buildDate)
		},
	}
}

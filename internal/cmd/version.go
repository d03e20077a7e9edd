package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dendrascience/transfs/version"
)

// NewVersionCmd creates and returns the version subcommand, which prints the
// full build information.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			version.Fprint(cmd.OutOrStdout())
		},
	}
}

package commands

import (
	"github.com/spf13/cobra"

	"cloud-deploy-dashboard/cmd/deployctl/handlers"
)

// Status returns the command that issues a single progress request.
func Status(opts *handlers.GlobalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the progress of the latest deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), opts, cmd.OutOrStdout(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

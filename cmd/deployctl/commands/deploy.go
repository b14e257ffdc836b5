package commands

import (
	"github.com/spf13/cobra"

	"cloud-deploy-dashboard/cmd/deployctl/handlers"
)

// Deploy returns the command that starts a deployment and shows its progress.
//
// Missing flags are asked for in an interactive form. With --plain, progress
// is printed as one line per change instead of the full-screen view.
func Deploy(opts *handlers.GlobalOptions) *cobra.Command {
	var d handlers.DeployOptions

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Start a cloud deployment and follow its progress",
		Long: `Start a deployment on the backend and poll its progress until it
completes or fails.

Examples:
  # Fill in the parameters interactively
  deployctl deploy

  # Fully non-interactive
  deployctl deploy --provider aws --cluster demo --nodes 3 --plain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), opts, cmd.OutOrStdout(), d)
		},
	}

	cmd.Flags().StringVar(&d.Provider, "provider", "", "Cloud provider: aliyun or aws")
	cmd.Flags().StringVar(&d.ClusterName, "cluster", "", "Cluster name")
	cmd.Flags().IntVar(&d.NodeCount, "nodes", 0, "Number of nodes")
	cmd.Flags().DurationVar(&d.PollInterval, "interval", 0, "Progress poll interval (default: $DEPLOY_POLL_INTERVAL or 5s)")
	cmd.Flags().BoolVar(&d.Plain, "plain", false, "Print status lines instead of the interactive view")

	return cmd
}

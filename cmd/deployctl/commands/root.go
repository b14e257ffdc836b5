// Package commands defines the deployctl command tree and flag bindings.
// Execution is delegated to the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"cloud-deploy-dashboard/cmd/deployctl/handlers"
)

// Root returns the root command for the deployctl CLI.
func Root() *cobra.Command {
	opts := &handlers.GlobalOptions{}

	cmd := &cobra.Command{
		Use:           "deployctl",
		Short:         "Deploy clusters to Alibaba Cloud or AWS and follow their progress",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "Deployment API base URL (default: $DEPLOY_API_URL)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "Load environment from this file instead of .env")

	cmd.AddCommand(Login(opts))
	cmd.AddCommand(Logout(opts))
	cmd.AddCommand(Deploy(opts))
	cmd.AddCommand(Status(opts))

	return cmd
}

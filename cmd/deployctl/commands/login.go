package commands

import (
	"github.com/spf13/cobra"

	"cloud-deploy-dashboard/cmd/deployctl/handlers"
)

// Login returns the command that exchanges credentials for a token and
// stores it in the configured token store.
func Login(opts *handlers.GlobalOptions) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Login(cmd.Context(), opts, cmd.OutOrStdout(), username, password)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when empty)")

	return cmd
}

// Logout returns the command that deletes the stored token.
func Logout(opts *handlers.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Logout(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
}

package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Create, activate, or reauthenticate users",
}

var (
	userName      string
	tokenLifespan time.Duration
)

var userCreateCmd = &cobra.Command{
	Use:   "create <login>",
	Short: "Provision a new user and print its activation token (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		out, err := s.CreateUser(args[0], userName, tokenLifespan)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var userActivateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Complete a new user's first login, setting --password as their passphrase",
	Long:  "Activate derives and persists the caller's keypair from --password, which becomes the user's passphrase. It succeeds while the login has an unexpired activation token; the token value itself is not sent.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		out, err := s.Activate()
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var newPassword string

var userPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the caller's password and rotate their session",
	RunE: func(cmd *cobra.Command, args []string) error {
		np := newPassword
		if np == "" {
			var err error
			np, err = promptPassword(cmd.OutOrStderr(), "new password: ")
			if err != nil {
				return err
			}
		}
		s, err := newSession()
		if err != nil {
			return err
		}
		out, err := s.ChangePassword(np)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

func init() {
	userCreateCmd.Flags().StringVar(&userName, "name", "", "display name for the new user")
	userCreateCmd.Flags().DurationVar(&tokenLifespan, "token-lifespan", 0, "activation token lifespan (server default if 0)")
	userPasswdCmd.Flags().StringVar(&newPassword, "new-password", "", "new password (prompted if omitted)")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userActivateCmd)
	userCmd.AddCommand(userPasswdCmd)
}

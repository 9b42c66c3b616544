// Package user implements account management commands.
package user

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agrisense/farm-advisor/internal/app"
	"github.com/agrisense/farm-advisor/internal/conf"
)

// PasswordEnv supplies the password when --password is not given.
const PasswordEnv = "FARMADVISOR_USER_PASSWORD"

// Command creates the user command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts in the credential store",
	}
	cmd.AddCommand(addCommand(settings))
	return cmd
}

func addCommand(settings *conf.Settings) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "add [username]",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(PasswordEnv)
			}

			svc, store, err := app.OpenAuth(cmd.Context(), settings, nil)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := svc.SignUp(cmd.Context(), args[0], password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created account %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Account password (default: $"+PasswordEnv+")")
	return cmd
}

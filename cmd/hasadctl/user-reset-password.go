package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// userResetPasswordCmd represents the user reset-password command
var userResetPasswordCmd = &cobra.Command{
	Use:   "reset-password <login>",
	Short: "Set a new password for an account",
	Long: `Set a new password for an account and sign it out everywhere.

The password is read from standard input unless --password is given. It
must satisfy the password policy and differ from the current one.

Example:
  hasadctl user reset-password farid`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		password, err := passwordFrom(cmd, os.Stdin)
		if err == nil {
			err = withApp(func(a *app) error {
				id, err := a.userID(args[0])
				if err != nil {
					return err
				}
				return a.services.Auth.SetPassword(id, password, "")
			})
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to reset password for %s: %v\n", args[0], err)
			os.Exit(1)
		}
		fmt.Printf("Password reset for %s\n", args[0])
	},
}

func init() {
	userCmd.AddCommand(userResetPasswordCmd)
	userResetPasswordCmd.Flags().String("password", "", "new password (read from stdin when empty)")
}

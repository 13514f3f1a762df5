package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// userUnlockCmd represents the user unlock command
var userUnlockCmd = &cobra.Command{
	Use:   "unlock <login>",
	Short: "Unlock an account locked after failed logins",
	Long: `Clear the failed login counter and lock of an account.

login is a username or email address.

Example:
  hasadctl user unlock farid`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := withApp(func(a *app) error {
			id, err := a.userID(args[0])
			if err != nil {
				return err
			}
			return a.services.Auth.UnlockUser("", id)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to unlock %s: %v\n", args[0], err)
			os.Exit(1)
		}
		fmt.Printf("Unlocked %s\n", args[0])
	},
}

func init() {
	userCmd.AddCommand(userUnlockCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// userSetRoleCmd represents the user set-role command
var userSetRoleCmd = &cobra.Command{
	Use:   "set-role <login> <role>",
	Short: "Change the role of an account",
	Long: `Change the role of an account. Roles are viewer, user, manager and admin.

The new role applies to access tokens already issued.

Example:
  hasadctl user set-role farid manager`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		role, err := parseRole(args[1])
		if err == nil {
			err = withApp(func(a *app) error {
				id, err := a.userID(args[0])
				if err != nil {
					return err
				}
				return a.services.Auth.SetUserRole("", id, role)
			})
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to set role of %s: %v\n", args[0], err)
			os.Exit(1)
		}
		fmt.Printf("%s is now %s\n", args[0], role)
	},
}

func init() {
	userCmd.AddCommand(userSetRoleCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hasad-erp/hasad/pkg/auth"
)

// userCreateCmd represents the user create command
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user account",
	Long: `Create a user account with the given role.

The password is read from standard input unless --password is given.

Example:
  hasadctl user create --username admin --email admin@example.org --role admin`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := createUser(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create user: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	userCmd.AddCommand(userCreateCmd)
	userCreateCmd.Flags().StringP("username", "u", "", "login name")
	userCreateCmd.Flags().StringP("email", "e", "", "email address")
	userCreateCmd.Flags().String("full-name", "", "display name")
	userCreateCmd.Flags().StringP("role", "r", "user", "role (viewer, user, manager, admin)")
	userCreateCmd.Flags().String("password", "", "password (read from stdin when empty)")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("email")
}

func createUser(cmd *cobra.Command) error {
	roleName, _ := cmd.Flags().GetString("role")
	role, err := parseRole(roleName)
	if err != nil {
		return err
	}
	password, err := passwordFrom(cmd, os.Stdin)
	if err != nil {
		return err
	}

	in := auth.RegisterInput{Password: password}
	in.Username, _ = cmd.Flags().GetString("username")
	in.Email, _ = cmd.Flags().GetString("email")
	in.FullName, _ = cmd.Flags().GetString("full-name")

	return withApp(func(a *app) error {
		u, err := a.services.Auth.CreateUser(in, role, "")
		if err != nil {
			return err
		}
		fmt.Printf("Created %s %s (%s)\n", u.Role, u.Username, u.ID)
		return nil
	})
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// maintenanceCmd represents the maintenance command
var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Database housekeeping",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'maintenance' requires a subcommand purge")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

// maintenancePurgeCmd represents the maintenance purge command
var maintenancePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired tokens and stale sessions",
	Long: `Delete expired tokens, and sessions that expired or were revoked more
than a day ago. Safe to run from cron.

Example:
  hasadctl maintenance purge`,
	Run: func(cmd *cobra.Command, args []string) {
		err := withApp(func(a *app) error {
			res, err := a.services.Auth.PurgeExpired(time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("Purged %d tokens and %d sessions\n", res.Tokens, res.Sessions)
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Purge failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(maintenanceCmd)
	maintenanceCmd.AddCommand(maintenancePurgeCmd)
}

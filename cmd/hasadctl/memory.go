package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// memoryCmd represents the memory command
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Move memories in and out of the knowledge store",
	Long: `Export and import memories, and print the schema of an exported record.

Export and import act as the user named by --as and see exactly what that
user would see through the API.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'memory' requires a subcommand (export, import, schema)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(memoryCmd)
}

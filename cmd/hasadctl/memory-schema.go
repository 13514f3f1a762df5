package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hasad-erp/hasad/pkg/memory"
)

// memorySchemaCmd represents the memory schema command
var memorySchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of an exported memory record",
	Run: func(cmd *cobra.Command, args []string) {
		schema, err := memory.Schema()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build schema: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(schema))
	},
}

func init() {
	memoryCmd.AddCommand(memorySchemaCmd)
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hasad-erp/hasad/pkg/memory"
	"github.com/hasad-erp/hasad/pkg/model"
)

// memoryExportCmd represents the memory export command
var memoryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export memories as JSON lines or CSV",
	Long: `Export every memory the acting user can read.

Example:
  hasadctl memory export --as admin > memories.jsonl
  hasadctl memory export --as admin --format csv --tag irrigation -o irrigation.csv`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := exportMemories(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	memoryCmd.AddCommand(memoryExportCmd)
	memoryExportCmd.Flags().String("as", "", "username or email of the acting user")
	memoryExportCmd.Flags().StringP("format", "f", memory.FormatJSONL, "output format (jsonl or csv)")
	memoryExportCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	memoryExportCmd.Flags().String("type", "", "only memories of this type")
	memoryExportCmd.Flags().String("category", "", "only memories in this category")
	memoryExportCmd.Flags().String("tag", "", "only memories with this tag")
	memoryExportCmd.Flags().Bool("include-archived", false, "include archived memories")
	_ = memoryExportCmd.MarkFlagRequired("as")
}

func exportMemories(cmd *cobra.Command) error {
	as, _ := cmd.Flags().GetString("as")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	var f memory.ListFilter
	memoryType, _ := cmd.Flags().GetString("type")
	f.Type = model.MemoryType(memoryType)
	f.Category, _ = cmd.Flags().GetString("category")
	f.Tag, _ = cmd.Flags().GetString("tag")
	f.IncludeArchived, _ = cmd.Flags().GetBool("include-archived")

	var w io.Writer = os.Stdout
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		w = file
	}

	return withApp(func(a *app) error {
		id, err := a.identityOf(as)
		if err != nil {
			return err
		}
		n, err := a.services.Memory.Export(context.Background(), id, w, format, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d memories\n", n)
		return nil
	})
}

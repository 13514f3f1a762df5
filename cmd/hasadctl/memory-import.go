package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hasad-erp/hasad/pkg/memory"
)

// memoryImportCmd represents the memory import command
var memoryImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import memories from JSON lines or CSV",
	Long: `Create a memory owned by the acting user for every record in file, or in
standard input when no file is given. Bad records are reported and skipped.

The format defaults to the file extension (.csv or .jsonl).

Example:
  hasadctl memory import --as farid memories.jsonl
  cat notes.csv | hasadctl memory import --as farid --format csv`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := importMemories(cmd, args); err != nil {
			fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	memoryCmd.AddCommand(memoryImportCmd)
	memoryImportCmd.Flags().String("as", "", "username or email of the acting user")
	memoryImportCmd.Flags().StringP("format", "f", "", "input format (jsonl or csv)")
	_ = memoryImportCmd.MarkFlagRequired("as")
}

func importMemories(cmd *cobra.Command, args []string) error {
	as, _ := cmd.Flags().GetString("as")
	format, _ := cmd.Flags().GetString("format")

	var r io.Reader = os.Stdin
	if len(args) == 1 {
		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		r = file
		if format == "" && strings.HasSuffix(strings.ToLower(args[0]), ".csv") {
			format = memory.FormatCSV
		}
	}
	if format == "" {
		format = memory.FormatJSONL
	}

	return withApp(func(a *app) error {
		id, err := a.identityOf(as)
		if err != nil {
			return err
		}
		res, err := a.services.Memory.Import(context.Background(), id, r, format)
		if err != nil {
			return err
		}

		lines := make([]int, 0, len(res.Errors))
		for line := range res.Errors {
			lines = append(lines, line)
		}
		sort.Ints(lines)
		for _, line := range lines {
			fmt.Fprintf(os.Stderr, "record %d: %s\n", line, res.Errors[line])
		}
		fmt.Printf("Imported %d memories, %d failed\n", res.Created, res.Failed)
		return nil
	})
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hasad-erp/hasad/pkg/config"
)

// configurationShowCmd represents the configuration show command
var configurationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show Hasad configuration attributes and their sources",
	Long: `Show Hasad configuration attributes and their sources.

The values displayed by this command reflect the current state of the
configuration sources, that is the environment variables and the config
file. A running server picks up file changes but reports attributes that
need a restart.

Config file location: /etc/hasad/config/hasad.yml (or HASAD_CONFIG_PATH)

Example:
  hasadctl configuration show
  hasadctl configuration show --output json`,
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")

		if err := showConfiguration(output); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to show configuration: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	configurationCmd.AddCommand(configurationShowCmd)
	configurationShowCmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
}

func showConfiguration(output string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	switch output {
	case "json":
		jsonOutput, err := cfg.FormatJSON()
		if err != nil {
			return err
		}
		fmt.Println(jsonOutput)
	case "text":
		fmt.Print(cfg.FormatText())
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
	return nil
}

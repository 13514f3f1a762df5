package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hasad-erp/hasad/pkg/cipher"
)

// configurationValidateCmd represents the configuration validate command
var configurationValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and required environment",
	Long: `Load and validate the configuration file, then check that the
environment variables the server needs are present and well formed.

Example:
  hasadctl configuration validate`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := validateConfiguration(); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration is invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration is valid.")
	},
}

func init() {
	configurationCmd.AddCommand(configurationValidateCmd)
}

func validateConfiguration() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Printf("Config file: %s\n", cfg.ConfigFilePath())

	if os.Getenv("DATABASE_URL") == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	if _, err := cipher.FromEnv(); err != nil {
		return err
	}
	if raw := os.Getenv("HASAD_TOKEN_KEY"); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return fmt.Errorf("bad HASAD_TOKEN_KEY: %w", err)
		}
		if len(key) < cipher.KeySize {
			return fmt.Errorf("bad HASAD_TOKEN_KEY: expected at least %d bytes, got %d", cipher.KeySize, len(key))
		}
	} else {
		fmt.Println("Warning: HASAD_TOKEN_KEY is not set, access tokens will not survive a restart")
	}
	return nil
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// userCmd represents the user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
	Long: `Manage user accounts directly in the database.

These commands act as the system and need DATABASE_URL and HASAD_DATA_KEY.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'user' requires a subcommand (create, unlock, reset-password, set-role)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
}

// withApp runs fn against services backed by the database
func withApp(fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// passwordFrom returns the --password flag, or the first line of r when the
// flag is empty
func passwordFrom(cmd *cobra.Command, r io.Reader) (string, error) {
	if pw, _ := cmd.Flags().GetString("password"); pw != "" {
		return pw, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", fmt.Errorf("a password is required")
	}
	return pw, nil
}

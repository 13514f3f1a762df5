package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hasad-erp/hasad/pkg/cipher"
)

// dataKeyGenerateCmd represents the data-key generate command
var dataKeyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a data encryption key",
	Long: `
Generate a data encryption key

Use this command to generate a new Base64-encoded 256 bit key. Once generated,
this key should be placed into the environment of the Hasad server as
HASAD_DATA_KEY, where it encrypts MFA seeds and OAuth tokens stored in the
database. The same command produces a suitable HASAD_TOKEN_KEY.

Example:

$ export HASAD_DATA_KEY="$(hasadctl data-key generate)"
`,
	Run: func(cmd *cobra.Command, args []string) {
		bytes, err := cipher.RandomBytes(cipher.KeySize)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to generate key:", err)
			os.Exit(1)
		}
		fmt.Printf("%s", base64.StdEncoding.Strict().EncodeToString(bytes))
	},
}

func init() {
	dataKeyCmd.AddCommand(dataKeyGenerateCmd)
}

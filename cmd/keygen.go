package cmd

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zaptalk/sheetsbridge/internal/tokenstore"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new TOKEN_ENCRYPTION_KEY",
		Long: `Generate a random AES-256 key for encrypting stored Google tokens and
print it base64 encoded, ready to be used as TOKEN_ENCRYPTION_KEY.

Changing the key makes previously stored credentials unreadable; affected
users have to connect their Google account again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := tokenstore.GenerateKey()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(key))
			return err
		},
	}
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the sheetsbridge application
var rootCmd = &cobra.Command{
	Use:   "sheetsbridge",
	Short: "Connects application users to their Google Sheets",
	Long: `sheetsbridge runs the OAuth flow that links an application user to a
Google account, keeps the resulting credentials fresh and proxies read-only
spreadsheet listing and value reads to the Drive and Sheets APIs.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "sheetsbridge version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newKeygenCmd())
	rootCmd.AddCommand(newVersionCmd())
}

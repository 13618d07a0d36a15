package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zaptalk/sheetsbridge/internal/config"
	"github.com/zaptalk/sheetsbridge/internal/tokenstore"
)

func newMigrateCmd() *cobra.Command {
	cfg := config.New()

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the token store schema to Postgres",
		Long: `Apply the embedded schema migrations to the database named by
DATABASE_URL (or --database-url). Already applied migrations are skipped.

Run this once before serving with --database-auto-migrate=false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd.Flags(), cfg); err != nil {
				return err
			}
			if cfg.Store.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			if err := tokenstore.Migrate(cfg.Store.DatabaseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "token store schema is up to date")
			return nil
		},
	}

	cfg.RegisterFlags(cmd.Flags())
	return cmd
}

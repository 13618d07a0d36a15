package cmd

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/zaptalk/sheetsbridge/internal/config"
)

// loadConfig layers the .env file, the environment and explicitly set
// flags over cfg's defaults, then derives dependent settings.
func loadConfig(fs *pflag.FlagSet, cfg *config.Config) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := cfg.Load(wd, fs); err != nil {
		return err
	}
	cfg.Finalize()
	return nil
}

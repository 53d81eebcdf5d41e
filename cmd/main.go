package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/amirphl/chart-drawings/internal/config"
	"github.com/amirphl/chart-drawings/internal/utils"
)

var rootCmd = &cobra.Command{
	Use:          "chart-drawings",
	Short:        "chart annotation engine: drawing storage, headless sessions and scene rendering",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, renderCmd, migrateCmd)
}

// loadConfig reads --config and configures the shared logger from it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	utils.ConfigureLogger(cfg.Log)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

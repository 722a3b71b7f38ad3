package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoatGit/semibot/internal/config"
	"github.com/GoatGit/semibot/internal/log"
)

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "semibot",
	Short: "Semibot event automation engine",
	Long:  `Semibot ingests events, matches them against declarative rules, gates risky actions behind human approval, and dispatches the rest to downstream executors.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Configure(log.Config{Level: logLevel, Format: logFormat})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves the engine configuration and applies root-flag
// overrides.
func loadConfig() (*config.EngineConfig, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.DBURL = dbURL
	}
	return cfg, nil
}

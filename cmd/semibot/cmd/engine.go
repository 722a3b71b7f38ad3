package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoatGit/semibot/internal/config"
	"github.com/GoatGit/semibot/internal/engine"
	"github.com/GoatGit/semibot/internal/log"
	"github.com/GoatGit/semibot/internal/rules"
	"github.com/GoatGit/semibot/internal/store"
)

const Version = "0.1.0"

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Run the automation engine daemon",
	RunE:  runEngine,
}

func init() {
	rootCmd.AddCommand(engineCmd)
	engineCmd.Flags().String("rules", "", "rule source (JSON file or directory)")
	engineCmd.Flags().Duration("poll-interval", 0, "rule watch poll interval (default from config)")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("rules") {
		src, _ := cmd.Flags().GetString("rules")
		cfg.RuleSource = src
	}
	if cmd.Flags().Changed("poll-interval") {
		iv, _ := cmd.Flags().GetDuration("poll-interval")
		cfg.RulePollInterval = iv
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	eng, err := engine.New(st, rules.NewLoader(cfg.RuleSource), cfg,
		engine.WithWebhookSecret(config.WebhookSecret()),
	)
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to build engine: %w", err)
	}

	if err := eng.StartRuleWatch(cfg.RulePollInterval); err != nil {
		eng.Close()
		return fmt.Errorf("failed to start rule watch: %w", err)
	}
	if cfg.HeartbeatEnabled {
		eng.StartHeartbeat(cfg.HeartbeatInterval, cfg.HeartbeatPayload)
	}
	started := eng.StartCronJobs(cfg.CronJobs)

	logger := log.WithComponent("daemon")
	logger.Info().
		Str("event", "daemon.started").
		Str("version", Version).
		Str("rule_source", cfg.RuleSource).
		Bool("heartbeat", cfg.HeartbeatEnabled).
		Int("cron_jobs", started).
		Msg("semibot engine running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().
		Str("event", "daemon.stopping").
		Str("signal", sig.String()).
		Msg("shutting down gracefully")
	return eng.Close()
}

// openStore opens the configured database and confirms the schema is
// current.
func openStore(cfg *config.EngineConfig) (*store.Store, error) {
	st, err := store.Open(cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	statuses, err := st.MigrateStatus()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	pending := 0
	for _, s := range statuses {
		if !s.Applied {
			pending++
		}
	}
	if pending > 0 {
		st.Close()
		return nil, fmt.Errorf("%d schema migrations pending - run 'semibot migrate' first", pending)
	}
	return st, nil
}

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*EngineConfig, error) {
	v := viper.New()

	// Set defaults matching DefaultEngineConfig
	v.SetDefault("db.url", "sqlite://semibot.db")
	v.SetDefault("rules.source", "./rules")
	v.SetDefault("rules.poll_interval", "2s")
	v.SetDefault("approval.risk_levels", []string{"high", "critical"})
	v.SetDefault("approval.ask_modes", []string{"ask"})
	v.SetDefault("budget.notify_limit_per_day", 0)
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("heartbeat.enabled", false)
	v.SetDefault("heartbeat.interval", "60s")

	// Bind environment variables with SEMIBOT_ prefix
	v.SetEnvPrefix("SEMIBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Security check: reject secrets in config files
	// Secrets must be environment-only per 12-factor principles
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	jobs, err := decodeCronJobs(v.Get("triggers.cron"))
	if err != nil {
		return nil, err
	}

	cfg := &EngineConfig{
		DBURL:              v.GetString("db.url"),
		RuleSource:         v.GetString("rules.source"),
		RulePollInterval:   v.GetDuration("rules.poll_interval"),
		ApprovalRiskLevels: v.GetStringSlice("approval.risk_levels"),
		ApprovalAskModes:   v.GetStringSlice("approval.ask_modes"),
		NotifyLimitPerDay:  v.GetInt("budget.notify_limit_per_day"),
		WebhookTimeout:     v.GetDuration("webhook.timeout"),
		HeartbeatEnabled:   v.GetBool("heartbeat.enabled"),
		HeartbeatInterval:  v.GetDuration("heartbeat.interval"),
		HeartbeatPayload:   v.GetStringMap("heartbeat.payload"),
		CronJobs:           jobs,
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks positive intervals and non-empty storage/rule locations.
func validateConfig(cfg *EngineConfig) error {
	if cfg.DBURL == "" {
		return fmt.Errorf("db.url must not be empty")
	}
	if cfg.RuleSource == "" {
		return fmt.Errorf("rules.source must not be empty")
	}
	if cfg.RulePollInterval <= 0 {
		return fmt.Errorf("rules.poll_interval must be positive, got %v", cfg.RulePollInterval)
	}
	if cfg.NotifyLimitPerDay < 0 {
		return fmt.Errorf("budget.notify_limit_per_day must not be negative, got %d", cfg.NotifyLimitPerDay)
	}
	if cfg.WebhookTimeout <= 0 {
		return fmt.Errorf("webhook.timeout must be positive, got %v", cfg.WebhookTimeout)
	}
	if cfg.HeartbeatEnabled && cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat.interval must be positive, got %v", cfg.HeartbeatInterval)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("webhook.secret") || v.IsSet("webhook_secret") {
		return fmt.Errorf("webhook secrets not allowed in config files (use SEMIBOT_WEBHOOK_SECRET environment variable)")
	}
	return nil
}

// decodeCronJobs converts the raw triggers.cron list into typed descriptors.
func decodeCronJobs(raw any) ([]CronJob, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("triggers.cron must be a list, got %T", raw)
	}

	jobs := make([]CronJob, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("triggers.cron[%d] must be a mapping, got %T", i, item)
		}
		job := CronJob{
			Name:      stringField(entry, "name"),
			Schedule:  stringField(entry, "schedule"),
			EventType: stringField(entry, "event_type"),
		}
		if payload, ok := entry["payload"].(map[string]any); ok {
			job.Payload = payload
		}
		if job.Name == "" || job.Schedule == "" || job.EventType == "" {
			return nil, fmt.Errorf("triggers.cron[%d] requires name, schedule and event_type", i)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func stringField(entry map[string]any, key string) string {
	s, _ := entry[key].(string)
	return s
}

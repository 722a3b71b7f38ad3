// Package config provides configuration management for the semibot engine.
package config

import (
	"os"
	"strings"
	"time"
)

// EngineConfig holds configuration for the automation engine daemon.
type EngineConfig struct {
	DBURL              string
	RuleSource         string
	RulePollInterval   time.Duration
	ApprovalRiskLevels []string
	ApprovalAskModes   []string
	NotifyLimitPerDay  int
	WebhookTimeout     time.Duration
	HeartbeatEnabled   bool
	HeartbeatInterval  time.Duration
	HeartbeatPayload   map[string]any
	CronJobs           []CronJob
}

// CronJob describes one periodic trigger declared in the config file.
// Schedule accepts "@every:<seconds>" or a "*/N * * * *" minute pattern.
type CronJob struct {
	Name      string
	Schedule  string
	EventType string
	Payload   map[string]any
}

// DefaultEngineConfig returns configuration with default values.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		DBURL:              "sqlite://semibot.db",
		RuleSource:         "./rules",
		RulePollInterval:   2 * time.Second,
		ApprovalRiskLevels: []string{"high", "critical"},
		ApprovalAskModes:   []string{"ask"},
		NotifyLimitPerDay:  0,
		WebhookTimeout:     10 * time.Second,
		HeartbeatEnabled:   false,
		HeartbeatInterval:  60 * time.Second,
	}
}

// RequiresApproval reports whether a rule with the given action mode and
// risk level must be gated behind human approval.
func (c *EngineConfig) RequiresApproval(mode, riskLevel string) bool {
	for _, m := range c.ApprovalAskModes {
		if m == mode {
			return true
		}
	}
	for _, r := range c.ApprovalRiskLevels {
		if r != "" && r == riskLevel {
			return true
		}
	}
	return false
}

// WebhookSecret extracts the webhook signing secret from the environment.
// Secrets are environment-only; an empty or unset SEMIBOT_WEBHOOK_SECRET
// disables outbound signing.
func WebhookSecret() []byte {
	val := strings.TrimSpace(os.Getenv("SEMIBOT_WEBHOOK_SECRET"))
	if val == "" {
		return nil
	}
	return []byte(val)
}

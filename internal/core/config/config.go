// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// BusinessHours is the local-time window during which production
// changes carry extra risk.
type BusinessHours struct {
	StartHour int `yaml:"start_hour" env:"REMEDY_BUSINESS_HOURS_START"`
	EndHour   int `yaml:"end_hour" env:"REMEDY_BUSINESS_HOURS_END"`
}

// Contains reports whether t falls inside the window
func (b BusinessHours) Contains(t time.Time) bool {
	hour := t.Hour()
	return hour >= b.StartHour && hour < b.EndHour
}

// CommentaryConfig configures the LLM risk-commentary collaborator.
type CommentaryConfig struct {
	Enabled bool          `yaml:"enabled" env:"REMEDY_COMMENTARY_ENABLED"`
	Model   string        `yaml:"model" env:"REMEDY_COMMENTARY_MODEL"`
	APIKey  string        `yaml:"-" env:"REMEDY_OPENAI_API_KEY"`
	BaseURL string        `yaml:"base_url,omitempty" env:"REMEDY_COMMENTARY_BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"REMEDY_COMMENTARY_TIMEOUT"`
}

// NotificationConfig configures alert and result delivery.
type NotificationConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url,omitempty" env:"REMEDY_SLACK_WEBHOOK_URL"`
	Channel         string `yaml:"channel,omitempty" env:"REMEDY_SLACK_CHANNEL"`
	// EscalationWebhookURL receives escalated alerts for approvals that
	// sat unresolved past the escalation delay.
	EscalationWebhookURL string `yaml:"escalation_webhook_url,omitempty" env:"REMEDY_ESCALATION_WEBHOOK_URL"`
	EscalationChannel    string `yaml:"escalation_channel,omitempty" env:"REMEDY_ESCALATION_CHANNEL"`
}

// Config holds the engine configuration
type Config struct {
	CatalogDir              string        `yaml:"catalog_dir" env:"REMEDY_CATALOG_DIR"`
	MaxConcurrentExecutions int           `yaml:"max_concurrent_executions" env:"REMEDY_MAX_CONCURRENT"`
	QueueSize               int           `yaml:"queue_size" env:"REMEDY_QUEUE_SIZE"`
	QueuePollInterval       time.Duration `yaml:"queue_poll_interval" env:"REMEDY_QUEUE_POLL_INTERVAL"`
	EscalationDelay         time.Duration `yaml:"escalation_delay" env:"REMEDY_ESCALATION_DELAY"`
	AutoApprovalEnabled     bool          `yaml:"auto_approval_enabled" env:"REMEDY_AUTO_APPROVAL"`

	// ApprovalPolicies are CEL expressions evaluated per submission;
	// all of them must hold for auto-approval to stay enabled.
	ApprovalPolicies []string `yaml:"approval_policies,omitempty"`

	BusinessHours BusinessHours      `yaml:"business_hours"`
	Commentary    CommentaryConfig   `yaml:"commentary"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// NewDefaultConfig creates a configuration with sane local defaults
func NewDefaultConfig() *Config {
	return &Config{
		CatalogDir:              "plans",
		MaxConcurrentExecutions: 4,
		QueueSize:               64,
		QueuePollInterval:       500 * time.Millisecond,
		EscalationDelay:         15 * time.Minute,
		AutoApprovalEnabled:     true,
		BusinessHours:           BusinessHours{StartHour: 9, EndHour: 17},
		Commentary: CommentaryConfig{
			Model:   "gpt-4o-mini",
			Timeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file (if any),
// then environment variable overrides.
func Load(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("error applying environment overrides: %w", err)
	}

	return config, config.Validate()
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	if c.MaxConcurrentExecutions < 1 {
		return fmt.Errorf("max_concurrent_executions must be at least 1, got %d", c.MaxConcurrentExecutions)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", c.QueueSize)
	}
	if c.QueuePollInterval <= 0 {
		return fmt.Errorf("queue_poll_interval must be positive")
	}
	if c.BusinessHours.StartHour < 0 || c.BusinessHours.EndHour > 24 ||
		c.BusinessHours.StartHour >= c.BusinessHours.EndHour {
		return fmt.Errorf("invalid business hours window: %d-%d",
			c.BusinessHours.StartHour, c.BusinessHours.EndHour)
	}
	if c.Commentary.Enabled && c.Commentary.Timeout <= 0 {
		return fmt.Errorf("commentary timeout must be positive when commentary is enabled")
	}
	return nil
}

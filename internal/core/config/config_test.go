// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/remedy/internal/core/config"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "plans", cfg.CatalogDir)
	assert.Equal(t, 4, cfg.MaxConcurrentExecutions)
	assert.Equal(t, 64, cfg.QueueSize)
	assert.Equal(t, 15*time.Minute, cfg.EscalationDelay)
	assert.True(t, cfg.AutoApprovalEnabled)
	assert.False(t, cfg.Commentary.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
catalog_dir: /etc/remedy/plans
max_concurrent_executions: 2
escalation_delay: 5m
auto_approval_enabled: false
business_hours:
  start_hour: 8
  end_hour: 18
approval_policies:
  - 'assessment.confidence >= 0.5'
`), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/remedy/plans", cfg.CatalogDir)
	assert.Equal(t, 2, cfg.MaxConcurrentExecutions)
	assert.Equal(t, 5*time.Minute, cfg.EscalationDelay)
	assert.False(t, cfg.AutoApprovalEnabled)
	assert.Equal(t, 8, cfg.BusinessHours.StartHour)
	assert.Len(t, cfg.ApprovalPolicies, 1)
	// Untouched keys keep their defaults
	assert.Equal(t, 64, cfg.QueueSize)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("REMEDY_MAX_CONCURRENT", "8")
	t.Setenv("REMEDY_OPENAI_API_KEY", "sk-test")
	t.Setenv("REMEDY_SLACK_WEBHOOK_URL", "https://hooks.slack.example/T000")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.MaxConcurrentExecutions)
	assert.Equal(t, "sk-test", cfg.Commentary.APIKey)
	assert.Equal(t, "https://hooks.slack.example/T000", cfg.Notifications.SlackWebhookURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero concurrency", func(c *config.Config) { c.MaxConcurrentExecutions = 0 }},
		{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
		{"non-positive poll interval", func(c *config.Config) { c.QueuePollInterval = 0 }},
		{"inverted business hours", func(c *config.Config) { c.BusinessHours = config.BusinessHours{StartHour: 18, EndHour: 9} }},
		{"commentary enabled without timeout", func(c *config.Config) {
			c.Commentary.Enabled = true
			c.Commentary.Timeout = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, config.NewDefaultConfig().Validate())
}

func TestBusinessHoursContains(t *testing.T) {
	hours := config.BusinessHours{StartHour: 9, EndHour: 17}

	assert.True(t, hours.Contains(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))
	assert.True(t, hours.Contains(time.Date(2025, 3, 10, 16, 59, 0, 0, time.UTC)))
	assert.False(t, hours.Contains(time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)))
	assert.False(t, hours.Contains(time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)))
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{URL: "postgres://localhost:5432/tola_sync?sslmode=disable"},
		Tola: TolaConfig{
			APIKey:        "test-key",
			WebhookSecret: "test-secret",
		},
		Sync: SyncConfig{
			LargeTransferThreshold: "10000",
			BatchSize:              "50",
		},
		Queue: QueueConfig{DrainLimit: 10},
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_RejectsUnsafeValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing database url", func(c *Config) { c.Database.URL = "" }},
		{"missing api key", func(c *Config) { c.Tola.APIKey = "" }},
		{"missing webhook secret", func(c *Config) { c.Tola.WebhookSecret = "" }},
		{"zero drain limit", func(c *Config) { c.Queue.DrainLimit = 0 }},
		{"zero batch size", func(c *Config) { c.Sync.BatchSize = "0" }},
		{"negative batch size", func(c *Config) { c.Sync.BatchSize = "-50" }},
		{"garbage batch size", func(c *Config) { c.Sync.BatchSize = "fifty" }},
		{"empty batch size", func(c *Config) { c.Sync.BatchSize = "" }},
		{"zero threshold", func(c *Config) { c.Sync.LargeTransferThreshold = "0" }},
		{"garbage threshold", func(c *Config) { c.Sync.LargeTransferThreshold = "lots" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sleeporgive/internal/platform/config"
)

/*
TestLoad_Defaults verifies the defaults for a minimal sqlite setup.
*/
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, config.RateLimitBackendSQL, cfg.RateLimitBackend)
	assert.Equal(t, config.MailTransportOutbox, cfg.MailTransport)
	assert.Equal(t, 3, cfg.MailMaxRetries)
	assert.Equal(t, 30*time.Second, cfg.MailRetryBackoff)
	assert.Equal(t, time.Hour, cfg.VerificationTTL)
	assert.Equal(t, 5, cfg.VerificationMaxTries)
	assert.EqualValues(t, 25, cfg.DatabaseMaxConns)
	assert.True(t, cfg.IsDevelopment())
}

/*
TestValidate_Rejections covers the combinations refused at startup.
*/
func TestValidate_Rejections(t *testing.T) {
	base := func() config.Config {
		return config.Config{
			DatabaseDriver:       config.DriverPostgres,
			DatabaseURL:          "postgres://localhost/sleep",
			RateLimitBackend:     config.RateLimitBackendSQL,
			MailTransport:        config.MailTransportOutbox,
			MailMaxRetries:       3,
			VerificationMaxTries: 5,
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"postgres_without_dsn", func(c *config.Config) { c.DatabaseURL = "" }},
		{"unknown_driver", func(c *config.Config) { c.DatabaseDriver = "mysql" }},
		{"redis_without_url", func(c *config.Config) { c.RateLimitBackend = config.RateLimitBackendRedis }},
		{"postmark_without_token", func(c *config.Config) { c.MailTransport = config.MailTransportPostmark }},
		{"zero_tries", func(c *config.Config) { c.VerificationMaxTries = 0 }},
	}

	valid := base()
	require.NoError(t, valid.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

/*
TestAllowedOrigins verifies EXTRA_ORIGINS parsing.
*/
func TestAllowedOrigins(t *testing.T) {
	cfg := config.Config{
		Origin:       "https://sleep.example.org/",
		ExtraOrigins: " http://localhost:5173 ,,https://beta.example.org",
	}

	assert.Equal(t, []string{
		"https://sleep.example.org",
		"http://localhost:5173",
		"https://beta.example.org",
	}, cfg.AllowedOrigins())
}

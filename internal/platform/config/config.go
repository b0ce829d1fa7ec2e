// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Mail) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Driver Identifiers

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	RateLimitBackendSQL   = "sql"
	RateLimitBackendRedis = "redis"

	MailTransportPostmark = "postmark"
	MailTransportOutbox   = "outbox"
)

// # Configuration Schema

// Config holds all runtime configuration for the SleepOrGive API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Origin is the public base URL used in links sent by email.
	Origin  string `env:"ORIGIN"   envDefault:"https://sleep.maowtm.org"`
	AppName string `env:"APP_NAME" envDefault:"SleepOrGive"`

	// Relational Database
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`

	// DatabaseMaxConns caps the Postgres pool.
	DatabaseMaxConns int32 `env:"DATABASE_MAX_CONNS" envDefault:"25"`
	SQLitePath     string `env:"SQLITE_PATH"     envDefault:"./data/sleeporgive.db"`

	// MigrationPath overrides the embedded Postgres migrations with a directory on disk.
	MigrationPath string `env:"MIGRATION_PATH"`

	// Key-Value Cache (Redis). Optional unless RateLimitBackend is "redis".
	RedisURL         string `env:"REDIS_URL"`
	RateLimitBackend string `env:"RATE_LIMIT_BACKEND" envDefault:"sql"`

	// Outgoing mail
	MailFrom            string        `env:"MAIL_FROM"             envDefault:"notification@sleep.maowtm.org"`
	MailTransport       string        `env:"MAIL_TRANSPORT"        envDefault:"outbox"`
	PostmarkServerToken string        `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkEndpoint    string        `env:"POSTMARK_ENDPOINT"     envDefault:"https://api.postmarkapp.com/email"`
	MailOutboxPath      string        `env:"MAIL_OUTBOX_PATH"      envDefault:"./data/outbox.db"`
	MailMaxRetries      int           `env:"MAIL_MAX_RETRIES"      envDefault:"3"`
	MailRetryBackoff    time.Duration `env:"MAIL_RETRY_BACKOFF"    envDefault:"30s"`

	// Email verification
	VerificationTTL      time.Duration `env:"VERIFICATION_TTL"       envDefault:"1h"`
	VerificationMaxTries int           `env:"VERIFICATION_MAX_TRIES" envDefault:"5"`

	// Background jobs
	SchedulerRestartBackoff time.Duration `env:"SCHEDULER_RESTART_BACKOFF" envDefault:"1s"`
	HousekeepingInterval    time.Duration `env:"HOUSEKEEPING_INTERVAL"     envDefault:"15m"`

	// Session cookie
	CookieSecure bool `env:"COOKIE_SECURE" envDefault:"true"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects combinations that cannot be wired at startup.
func (c *Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	switch c.RateLimitBackend {
	case RateLimitBackendSQL:
	case RateLimitBackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis rate limit backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend))
	}

	switch c.MailTransport {
	case MailTransportPostmark:
		if c.PostmarkServerToken == "" {
			errs = append(errs, errors.New("POSTMARK_SERVER_TOKEN is required for the postmark transport"))
		}
	case MailTransportOutbox:
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_TRANSPORT %q", c.MailTransport))
	}

	if c.MailMaxRetries < 0 {
		errs = append(errs, errors.New("MAIL_MAX_RETRIES must not be negative"))
	}
	if c.VerificationMaxTries < 1 {
		errs = append(errs, errors.New("VERIFICATION_MAX_TRIES must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// AllowedOrigins lists the origins trusted by CORS: the public origin plus
// any comma-separated EXTRA_ORIGINS.
func (c *Config) AllowedOrigins() []string {
	origins := []string{strings.TrimRight(c.Origin, "/")}
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, strings.TrimRight(origin, "/"))
		}
	}
	return origins
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

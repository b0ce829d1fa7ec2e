// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration applies the PostgreSQL schema with golang-migrate.
//
// The migrations ship inside the binary (sql/*.sql). A directory on disk can
// replace them for operators who manage the schema out of band.
package migration

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 driver registers the "pgx5" scheme.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// file source serves an on-disk override.
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var embedded embed.FS

/*
RunUp brings the database at dsn to the latest schema version.

Parameters:
  - dsn: postgres:// or postgresql:// URL
  - dir: Migrations directory on disk; empty uses the embedded set
  - logger: *slog.Logger

Returns:
  - error: A dirty database or a failed step; "no change" is success
*/
func RunUp(dsn, dir string, logger *slog.Logger) error {
	databaseURL, err := pgx5URL(dsn)
	if err != nil {
		return err
	}

	migrator, err := newMigrator(databaseURL, dir)
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		sourceErr, dbErr := migrator.Close()
		if err := errors.Join(sourceErr, dbErr); err != nil {
			logger.Warn("migration_close_failed", slog.Any("error", err))
		}
	}()
	migrator.Log = &migrateLogger{logger: logger}

	from, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: failed to read version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration: schema version %d is dirty, fix it by hand", from)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("migration_up_to_date", slog.Uint64("version", uint64(from)))
			return nil
		}
		return fmt.Errorf("migration: up failed: %w", err)
	}

	to, _, _ := migrator.Version()
	logger.Info("migration_applied",
		slog.Uint64("from_version", uint64(from)),
		slog.Uint64("to_version", uint64(to)),
		slog.Bool("embedded", dir == ""),
	)
	return nil
}

func newMigrator(databaseURL, dir string) (*migrate.Migrate, error) {
	if dir != "" {
		return migrate.New("file://"+dir, databaseURL)
	}

	source, err := iofs.New(embedded, "sql")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", source, databaseURL)
}

// pgx5URL rewrites a postgres URL to the pgx5 scheme the driver registers.
func pgx5URL(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("migration: invalid DATABASE_URL: %w", err)
	}

	switch parsed.Scheme {
	case "postgres", "postgresql":
		parsed.Scheme = "pgx5"
	case "pgx5":
	default:
		return "", fmt.Errorf("migration: unsupported scheme %q", parsed.Scheme)
	}
	return parsed.String(), nil
}

// migrateLogger bridges golang-migrate's logger to slog at debug level.
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}

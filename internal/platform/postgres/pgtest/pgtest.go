// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pgtest opens a migrated PostgreSQL pool for store integration tests.
//
// Tests skip unless SLEEPORGIVE_TEST_DATABASE_URL points at a database the
// tests may write to. Each caller gets its own schema so packages can run in
// parallel against one server.
package pgtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sleeporgive/internal/platform/migration"
	"github.com/taibuivan/sleeporgive/internal/platform/postgres"
)

// EnvDatabaseURL names the variable holding the test database DSN.
const EnvDatabaseURL = "SLEEPORGIVE_TEST_DATABASE_URL"

// Open recreates schema "test_<name>", migrates it and returns a pool bound to it.
func Open(t testing.TB, name string) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(EnvDatabaseURL)
	if dsn == "" {
		t.Skipf("%s is not set", EnvDatabaseURL)
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	schemaName := pgx.Identifier{"test_" + name}.Sanitize()

	// ── 1. Fresh schema ───────────────────────────────────────────────────
	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	for _, statement := range []string{"DROP SCHEMA IF EXISTS %s CASCADE", "CREATE SCHEMA %s"} {
		if _, err = admin.Exec(ctx, fmt.Sprintf(statement, schemaName)); err != nil {
			break
		}
	}
	admin.Close()
	require.NoError(t, err)

	// ── 2. Migrate and connect inside it ──────────────────────────────────
	scoped, err := withSearchPath(dsn, "test_"+name)
	require.NoError(t, err)
	require.NoError(t, migration.RunUp(scoped, "", logger))

	pool, err := postgres.NewPool(ctx, scoped, postgres.PoolOptions{MaxConns: 10}, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func withSearchPath(dsn, schemaName string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("pgtest: invalid %s: %w", EnvDatabaseURL, err)
	}
	query := parsed.Query()
	query.Set("search_path", schemaName)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

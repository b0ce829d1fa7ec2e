// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package postgres owns the pgx connection pool and the transaction helpers
// shared by every Postgres repository.
//
// # Workload
//
// Request handlers hold a connection for one or two short statements. The
// mail worker is different: it keeps its claimed row locked, and therefore
// its connection inside a transaction, for the whole network send. The pool
// is sized and the server-side timeouts are set with both in mind.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/sleeporgive/internal/platform/constants"
)

const (
	// requestConns is the floor of connections left to the request path
	// when every job holds its connection.
	requestConns = 4
	// minConns keeps a warm set of connections to avoid cold-start latency.
	minConns = 2
	// holdSlack is added to a job's hold timeout before Postgres aborts an
	// idle transaction and releases its row locks.
	holdSlack = 30 * time.Second
	// defaultIdleInTx applies when no job declares a hold timeout.
	defaultIdleInTx = time.Minute

	maxConnLifetime   = 60 * time.Minute
	maxConnIdleTime   = 10 * time.Minute
	healthCheckPeriod = 1 * time.Minute
	connectTimeout    = 5 * time.Second
	pingTimeout       = 2 * time.Second
)

// PoolOptions sizes the pool.
type PoolOptions struct {
	// MaxConns caps the pool. It is raised when it would starve requests.
	MaxConns int32

	// HeldByJobs is how many connections background jobs may keep inside a
	// transaction across a network call.
	HeldByJobs int32

	// HoldTimeout is the longest such a call may take.
	HoldTimeout time.Duration
}

// NewPool creates and validates a new PostgreSQL connection pool.
//
// # Parameters
//   - ctx: Context for the initial connection attempt.
//   - dsn: A libpq-compatible connection string or postgres:// URL.
//   - options: Pool sizing.
//   - logger: Structured logger for pool-level events.
func NewPool(ctx context.Context, dsn string, options PoolOptions, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid DSN: %w", err)
	}
	configure(poolConfig, options)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	if err := Ping(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("postgres_pool_connected",
		slog.Int("max_conns", int(poolConfig.MaxConns)),
		slog.Int("held_by_jobs", int(options.HeldByJobs)),
		slog.String("idle_in_transaction_timeout", poolConfig.ConnConfig.RuntimeParams["idle_in_transaction_session_timeout"]+"ms"),
	)

	return pool, nil
}

// configure applies sizing and per-session timeouts to a parsed config.
func configure(poolConfig *pgxpool.Config, options PoolOptions) {
	poolConfig.MaxConns = max(options.MaxConns, options.HeldByJobs+requestConns)
	poolConfig.MinConns = min(minConns, poolConfig.MaxConns)
	poolConfig.MaxConnLifetime = maxConnLifetime
	poolConfig.MaxConnIdleTime = maxConnIdleTime
	poolConfig.HealthCheckPeriod = healthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout

	idleInTx := defaultIdleInTx
	if options.HoldTimeout > 0 {
		idleInTx = options.HoldTimeout + holdSlack
	}

	params := poolConfig.ConnConfig.RuntimeParams
	params["application_name"] = constants.AppName
	params["statement_timeout"] = strconv.FormatInt(constants.GlobalRequestTimeout.Milliseconds(), 10)
	params["idle_in_transaction_session_timeout"] = strconv.FormatInt(idleInTx.Milliseconds(), 10)
}

// Ping verifies that the PostgreSQL connection pool is healthy.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("postgres: ping failed: %w", err)
	}

	return nil
}

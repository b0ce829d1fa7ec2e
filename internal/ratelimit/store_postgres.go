// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/sleeporgive/internal/platform/database/schema"
)

// PostgresStore keeps counters in rate_limit_state.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a [PostgresStore].
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// SET expressions see the pre-update row, so both CASEs test the old window.
var postgresBumpQuery = fmt.Sprintf(`
	INSERT INTO %[1]s (%[2]s, %[3]s, %[4]s) VALUES ($1, $2, 1)
	ON CONFLICT (%[2]s) DO UPDATE SET
		%[3]s = CASE WHEN %[1]s.%[3]s <= $3 THEN EXCLUDED.%[3]s ELSE %[1]s.%[3]s END,
		%[4]s = CASE WHEN %[1]s.%[3]s <= $3 THEN 1 ELSE %[1]s.%[4]s + 1 END
	RETURNING %[3]s, %[4]s`,
	schema.RateLimitState.Table, schema.RateLimitState.Key,
	schema.RateLimitState.LastReset, schema.RateLimitState.Count,
)

/*
Bump atomically records one hit on key.

Parameters:
  - context: context.Context
  - key: string (Limiter key)
  - period: time.Duration (Window length)
  - now: time.Time (Evaluation instant)

Returns:
  - Window: The counter after the hit
  - error: Database failures
*/
func (repository *PostgresStore) Bump(context context.Context, key string, period time.Duration, now time.Time) (Window, error) {
	var window Window
	err := repository.pool.QueryRow(context, postgresBumpQuery, key, now, now.Add(-period)).
		Scan(&window.LastReset, &window.Count)
	if err != nil {
		return Window{}, fmt.Errorf("postgres_ratelimit_bump_failed: %w", err)
	}
	return window, nil
}

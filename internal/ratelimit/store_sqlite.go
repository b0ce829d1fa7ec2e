// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taibuivan/sleeporgive/internal/platform/database/schema"
	"github.com/taibuivan/sleeporgive/internal/platform/sqlite"
)

// SQLiteStore keeps counters in the embedded database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a [SQLiteStore].
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

var sqliteBumpQuery = fmt.Sprintf(`
	INSERT INTO %[1]s (%[2]s, %[3]s, %[4]s) VALUES (?1, ?2, 1)
	ON CONFLICT (%[2]s) DO UPDATE SET
		%[3]s = CASE WHEN %[1]s.%[3]s <= ?3 THEN excluded.%[3]s ELSE %[1]s.%[3]s END,
		%[4]s = CASE WHEN %[1]s.%[3]s <= ?3 THEN 1 ELSE %[1]s.%[4]s + 1 END
	RETURNING %[3]s, %[4]s`,
	schema.RateLimitState.Table, schema.RateLimitState.Key,
	schema.RateLimitState.LastReset, schema.RateLimitState.Count,
)

// Bump atomically records one hit on key.
func (repository *SQLiteStore) Bump(context context.Context, key string, period time.Duration, now time.Time) (Window, error) {
	var (
		lastReset int64
		window    Window
	)
	err := repository.db.QueryRowContext(context, sqliteBumpQuery,
		key, sqlite.Millis(now), sqlite.Millis(now.Add(-period)),
	).Scan(&lastReset, &window.Count)
	if err != nil {
		return Window{}, fmt.Errorf("sqlite_ratelimit_bump_failed: %w", err)
	}
	window.LastReset = sqlite.Time(lastReset)
	return window, nil
}

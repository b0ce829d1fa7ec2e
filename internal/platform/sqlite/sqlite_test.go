// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sleeporgive/internal/platform/sqlite"
)

/*
TestOpen_Migrates verifies that every table of the trust subsystem exists.
*/
func TestOpen_Migrates(t *testing.T) {
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()

	tables := []string{"users", "auth_attempts", "sessions", "email_verification", "rate_limit_state", "outgoing_mail"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

/*
TestInTx_CommitWith verifies that CommitWith persists the work and still returns the error.
*/
func TestInTx_CommitWith(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	businessErr := errors.New("wrong code")

	err = sqlite.InTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO rate_limit_state (key, last_reset, count) VALUES ('kept', 0, 1)`); err != nil {
			return err
		}
		return sqlite.CommitWith(businessErr)
	})
	assert.ErrorIs(t, err, businessErr)

	err = sqlite.InTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO rate_limit_state (key, last_reset, count) VALUES ('dropped', 0, 1)`); err != nil {
			return err
		}
		return businessErr
	})
	assert.ErrorIs(t, err, businessErr)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM rate_limit_state`).Scan(&count))
	assert.Equal(t, 1, count)
}

/*
TestTimeEncoding verifies the millisecond round trip.
*/
func TestTimeEncoding(t *testing.T) {
	now := time.Date(2026, 3, 1, 22, 30, 0, 123_000_000, time.UTC)

	assert.Equal(t, now, sqlite.Time(sqlite.Millis(now)))
	assert.Nil(t, sqlite.NullTime(sqlite.NullMillis(nil)))
	assert.Equal(t, now, *sqlite.NullTime(sqlite.NullMillis(&now)))
}

/*
TestIsUniqueViolation tells unique failures apart from other constraint errors.
*/
func TestIsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, `INSERT INTO rate_limit_state (key, last_reset, count) VALUES ('k', 0, 1)`)
	require.NoError(t, err)

	_, duplicate := db.ExecContext(ctx, `INSERT INTO rate_limit_state (key, last_reset, count) VALUES ('k', 0, 1)`)
	require.Error(t, duplicate)

	_, orphan := db.ExecContext(ctx, `INSERT INTO sessions (bearer_hash, user_id, created_at) VALUES (x'01', 'missing', 0)`)
	require.Error(t, orphan)

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"primary_key", duplicate, true},
		{"wrapped", fmt.Errorf("insert: %w", duplicate), true},
		{"foreign_key", orphan, false},
		{"plain", errors.New("UNIQUE constraint failed"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqlite.IsUniqueViolation(tt.err))
		})
	}
}

// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/database/schema"
	"github.com/taibuivan/sleeporgive/internal/platform/dberr"
	"github.com/taibuivan/sleeporgive/internal/platform/sqlite"
)

// SQLiteRepository implements [Repository] on the embedded database.
//
// The state column is TEXT holding canonical JSON, so the compare-and-swap is
// a byte comparison of canonical encodings.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite auth attempt repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Start upserts an attempt by ticket hash.
func (repository *SQLiteRepository) Start(context context.Context, attempt *Attempt) error {
	state, err := encodeState(attempt.State)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s) VALUES (?, ?, ?, ?, ?, NULL)
		ON CONFLICT (%[3]s) DO UPDATE SET
			%[4]s = excluded.%[4]s,
			%[5]s = excluded.%[5]s,
			%[6]s = excluded.%[6]s,
			%[7]s = excluded.%[7]s,
			%[8]s = NULL`,
		schema.AuthAttempts.Table, attemptColumns, schema.AuthAttempts.TicketHash,
		schema.AuthAttempts.UserID, schema.AuthAttempts.State, schema.AuthAttempts.IPAddr,
		schema.AuthAttempts.StartedAt, schema.AuthAttempts.SuccessAt,
	)

	_, err = repository.db.ExecContext(context, query,
		attempt.TicketHash, attempt.UserID, string(state), attempt.IPAddr, sqlite.Millis(attempt.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite_auth_repo_start_failed: %w", err)
	}
	return nil
}

// Get loads an attempt by ticket hash.
func (repository *SQLiteRepository) Get(context context.Context, ticketHash []byte) (*Attempt, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`,
		attemptColumns, schema.AuthAttempts.Table, schema.AuthAttempts.TicketHash)

	var (
		attempt   = &Attempt{}
		state     string
		startedAt int64
		successAt sql.NullInt64
	)
	err := repository.db.QueryRowContext(context, query, ticketHash).Scan(
		&attempt.TicketHash, &attempt.UserID, &state, &attempt.IPAddr, &startedAt, &successAt,
	)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("Auth attempt")
		}
		return nil, fmt.Errorf("sqlite_auth_repo_get_failed: %w", err)
	}

	attempt.StartedAt = sqlite.Time(startedAt)
	attempt.SuccessAt = sqlite.NullTime(successAt)
	if attempt.State, err = decodeState([]byte(state)); err != nil {
		return nil, err
	}
	return attempt, nil
}

// UpdateState is the compare-and-swap on the state blob.
func (repository *SQLiteRepository) UpdateState(context context.Context, ticketHash []byte, expected, next State) (bool, error) {
	expectedBytes, nextBytes, err := encodePair(expected, next)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`UPDATE %[1]s SET %[2]s = ? WHERE %[3]s = ? AND %[2]s = ?`,
		schema.AuthAttempts.Table, schema.AuthAttempts.State, schema.AuthAttempts.TicketHash)

	result, err := repository.db.ExecContext(context, query, string(nextBytes), ticketHash, string(expectedBytes))
	if err != nil {
		return false, fmt.Errorf("sqlite_auth_repo_update_state_failed: %w", err)
	}
	return affectedOne(result)
}

// Complete records the single success of an attempt.
func (repository *SQLiteRepository) Complete(context context.Context, ticketHash []byte, expected State, at time.Time) (bool, error) {
	expectedBytes, err := encodeState(expected)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`UPDATE %[1]s SET %[2]s = ? WHERE %[3]s = ? AND %[4]s = ? AND %[2]s IS NULL`,
		schema.AuthAttempts.Table, schema.AuthAttempts.SuccessAt,
		schema.AuthAttempts.TicketHash, schema.AuthAttempts.State)

	result, err := repository.db.ExecContext(context, query, sqlite.Millis(at), ticketHash, string(expectedBytes))
	if err != nil {
		return false, fmt.Errorf("sqlite_auth_repo_complete_failed: %w", err)
	}
	return affectedOne(result)
}

// DeleteStaleBefore removes unsuccessful attempts started before cutoff.
func (repository *SQLiteRepository) DeleteStaleBefore(context context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s IS NULL AND %s < ?`,
		schema.AuthAttempts.Table, schema.AuthAttempts.SuccessAt, schema.AuthAttempts.StartedAt)

	result, err := repository.db.ExecContext(context, query, sqlite.Millis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("sqlite_auth_repo_prune_failed: %w", err)
	}
	return result.RowsAffected()
}

func affectedOne(result sql.Result) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite_auth_repo_rows_affected_failed: %w", err)
	}
	return affected == 1, nil
}

// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/database/schema"
	"github.com/taibuivan/sleeporgive/internal/platform/dberr"
)

// PostgresRepository implements [Repository] using pgx.
//
// The state column is jsonb, so the compare-and-swap uses jsonb equality and
// does not depend on key order.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL auth attempt repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var attemptColumns = strings.Join(schema.AuthAttempts.Columns(), ", ")

/*
Start upserts an attempt by ticket hash.

An existing row for the same ticket is reset: new owner, state, address and
start time, and no recorded success.
*/
func (repository *PostgresRepository) Start(context context.Context, attempt *Attempt) error {
	state, err := encodeState(attempt.State)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s) VALUES ($1, $2, $3::jsonb, $4, $5, NULL)
		ON CONFLICT (%[3]s) DO UPDATE SET
			%[4]s = EXCLUDED.%[4]s,
			%[5]s = EXCLUDED.%[5]s,
			%[6]s = EXCLUDED.%[6]s,
			%[7]s = EXCLUDED.%[7]s,
			%[8]s = NULL`,
		schema.AuthAttempts.Table, attemptColumns, schema.AuthAttempts.TicketHash,
		schema.AuthAttempts.UserID, schema.AuthAttempts.State, schema.AuthAttempts.IPAddr,
		schema.AuthAttempts.StartedAt, schema.AuthAttempts.SuccessAt,
	)

	_, err = repository.pool.Exec(context, query,
		attempt.TicketHash, attempt.UserID, string(state), attempt.IPAddr, attempt.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_auth_repo_start_failed: %w", err)
	}
	return nil
}

// Get loads an attempt by ticket hash.
func (repository *PostgresRepository) Get(context context.Context, ticketHash []byte) (*Attempt, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		attemptColumns, schema.AuthAttempts.Table, schema.AuthAttempts.TicketHash)

	var (
		attempt = &Attempt{}
		state   []byte
	)
	err := repository.pool.QueryRow(context, query, ticketHash).Scan(
		&attempt.TicketHash, &attempt.UserID, &state, &attempt.IPAddr, &attempt.StartedAt, &attempt.SuccessAt,
	)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("Auth attempt")
		}
		return nil, fmt.Errorf("postgres_auth_repo_get_failed: %w", err)
	}

	if attempt.State, err = decodeState(state); err != nil {
		return nil, err
	}
	return attempt, nil
}

// UpdateState is the compare-and-swap on the state blob.
func (repository *PostgresRepository) UpdateState(context context.Context, ticketHash []byte, expected, next State) (bool, error) {
	expectedBytes, nextBytes, err := encodePair(expected, next)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`UPDATE %[1]s SET %[2]s = $3::jsonb WHERE %[3]s = $1 AND %[2]s = $2::jsonb`,
		schema.AuthAttempts.Table, schema.AuthAttempts.State, schema.AuthAttempts.TicketHash)

	tag, err := repository.pool.Exec(context, query, ticketHash, string(expectedBytes), string(nextBytes))
	if err != nil {
		return false, fmt.Errorf("postgres_auth_repo_update_state_failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Complete records the single success of an attempt.
func (repository *PostgresRepository) Complete(context context.Context, ticketHash []byte, expected State, at time.Time) (bool, error) {
	expectedBytes, err := encodeState(expected)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`UPDATE %[1]s SET %[2]s = $3 WHERE %[3]s = $1 AND %[4]s = $2::jsonb AND %[2]s IS NULL`,
		schema.AuthAttempts.Table, schema.AuthAttempts.SuccessAt,
		schema.AuthAttempts.TicketHash, schema.AuthAttempts.State)

	tag, err := repository.pool.Exec(context, query, ticketHash, string(expectedBytes), at)
	if err != nil {
		return false, fmt.Errorf("postgres_auth_repo_complete_failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteStaleBefore removes unsuccessful attempts started before cutoff.
func (repository *PostgresRepository) DeleteStaleBefore(context context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s IS NULL AND %s < $1`,
		schema.AuthAttempts.Table, schema.AuthAttempts.SuccessAt, schema.AuthAttempts.StartedAt)

	tag, err := repository.pool.Exec(context, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres_auth_repo_prune_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func encodePair(expected, next State) ([]byte, []byte, error) {
	expectedBytes, err := encodeState(expected)
	if err != nil {
		return nil, nil, err
	}
	nextBytes, err := encodeState(next)
	if err != nil {
		return nil, nil, err
	}
	return expectedBytes, nextBytes, nil
}

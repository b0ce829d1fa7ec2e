// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/database/schema"
	"github.com/taibuivan/sleeporgive/internal/platform/dberr"
	"github.com/taibuivan/sleeporgive/internal/platform/postgres"
)

// PostgresRepository implements [Repository] using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL verification repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var verificationColumns = strings.Join(schema.EmailVerification.Columns(), ", ")

// Find loads a record by client ticket.
func (repository *PostgresRepository) Find(context context.Context, clientTicket string) (*Verification, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		verificationColumns, schema.EmailVerification.Table, schema.EmailVerification.ClientTicket)

	v, err := scanPostgresVerification(repository.pool.QueryRow(context, query, clientTicket))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("Verification")
		}
		return nil, fmt.Errorf("postgres_verification_repo_find_failed: %w", err)
	}
	return v, nil
}

/*
Insert stores a new record.

A concurrent insert with the same client ticket makes this a no-op.

Returns:
  - bool: true when the row was written
  - error: Wrapped database errors
*/
func (repository *PostgresRepository) Insert(context context.Context, v *Verification) (bool, error) {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (%s) DO NOTHING`,
		schema.EmailVerification.Table, verificationColumns, schema.EmailVerification.ClientTicket)

	tag, err := repository.pool.Exec(context, query,
		v.ClientTicket, v.Email, v.CodeTicketHash, v.Code, v.TryCount, v.CreatedAt, v.Purpose, v.UserID,
	)
	if err != nil {
		return false, fmt.Errorf("postgres_verification_repo_insert_failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AcquireCode sets the code on first read; COALESCE keeps an existing code.
func (repository *PostgresRepository) AcquireCode(context context.Context, codeTicketHash []byte, code string) (*Verification, error) {
	query := fmt.Sprintf(`UPDATE %[1]s SET %[2]s = COALESCE(%[2]s, $1) WHERE %[3]s = $2 RETURNING %[4]s`,
		schema.EmailVerification.Table, schema.EmailVerification.Code,
		schema.EmailVerification.CodeTicketHash, verificationColumns)

	v, err := scanPostgresVerification(repository.pool.QueryRow(context, query, code, codeTicketHash))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("Code ticket")
		}
		return nil, fmt.Errorf("postgres_verification_repo_acquire_failed: %w", err)
	}
	return v, nil
}

/*
Consume bumps the try count and lets check decide the outcome.

The transaction is serializable so concurrent submissions cannot lose a try.
A rejected check still commits the bump.
*/
func (repository *PostgresRepository) Consume(context context.Context, clientTicket string, check CheckFunc) error {
	bumpQuery := fmt.Sprintf(`UPDATE %[1]s SET %[2]s = %[2]s + 1 WHERE %[3]s = $1 RETURNING %[4]s`,
		schema.EmailVerification.Table, schema.EmailVerification.TryCount,
		schema.EmailVerification.ClientTicket, verificationColumns)
	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.EmailVerification.Table, schema.EmailVerification.ClientTicket)

	return postgres.InTx(context, repository.pool, postgres.Serializable, func(tx pgx.Tx) error {
		v, err := scanPostgresVerification(tx.QueryRow(context, bumpQuery, clientTicket))
		if err != nil && !dberr.IsNoRows(err) {
			return fmt.Errorf("postgres_verification_repo_bump_failed: %w", err)
		}

		if err := check(v); err != nil {
			return postgres.CommitWith(err)
		}

		if _, err := tx.Exec(context, deleteQuery, clientTicket); err != nil {
			return fmt.Errorf("postgres_verification_repo_consume_failed: %w", err)
		}
		return nil
	})
}

// Delete removes a record by client ticket.
func (repository *PostgresRepository) Delete(context context.Context, clientTicket string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.EmailVerification.Table, schema.EmailVerification.ClientTicket)

	if _, err := repository.pool.Exec(context, query, clientTicket); err != nil {
		return fmt.Errorf("postgres_verification_repo_delete_failed: %w", err)
	}
	return nil
}

// DeleteCreatedBefore removes every record created before cutoff.
func (repository *PostgresRepository) DeleteCreatedBefore(context context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s < $1`,
		schema.EmailVerification.Table, schema.EmailVerification.CreatedAt)

	tag, err := repository.pool.Exec(context, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres_verification_repo_prune_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPostgresVerification(row pgx.Row) (*Verification, error) {
	v := &Verification{}
	err := row.Scan(
		&v.ClientTicket, &v.Email, &v.CodeTicketHash, &v.Code, &v.TryCount, &v.CreatedAt, &v.Purpose, &v.UserID,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

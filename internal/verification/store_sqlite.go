// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package verification

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
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite verification repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Find loads a record by client ticket.
func (repository *SQLiteRepository) Find(context context.Context, clientTicket string) (*Verification, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`,
		verificationColumns, schema.EmailVerification.Table, schema.EmailVerification.ClientTicket)

	v, err := scanSQLiteVerification(repository.db.QueryRowContext(context, query, clientTicket))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("Verification")
		}
		return nil, fmt.Errorf("sqlite_verification_repo_find_failed: %w", err)
	}
	return v, nil
}

// Insert stores a new record unless the client ticket already exists.
func (repository *SQLiteRepository) Insert(context context.Context, v *Verification) (bool, error) {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (%s) DO NOTHING`,
		schema.EmailVerification.Table, verificationColumns, schema.EmailVerification.ClientTicket)

	result, err := repository.db.ExecContext(context, query,
		v.ClientTicket, v.Email, v.CodeTicketHash, v.Code, v.TryCount, sqlite.Millis(v.CreatedAt), v.Purpose, v.UserID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite_verification_repo_insert_failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite_verification_repo_insert_failed: %w", err)
	}
	return affected == 1, nil
}

// AcquireCode sets the code on first read; COALESCE keeps an existing code.
func (repository *SQLiteRepository) AcquireCode(context context.Context, codeTicketHash []byte, code string) (*Verification, error) {
	query := fmt.Sprintf(`UPDATE %[1]s SET %[2]s = COALESCE(%[2]s, ?) WHERE %[3]s = ? RETURNING %[4]s`,
		schema.EmailVerification.Table, schema.EmailVerification.Code,
		schema.EmailVerification.CodeTicketHash, verificationColumns)

	v, err := scanSQLiteVerification(repository.db.QueryRowContext(context, query, code, codeTicketHash))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("Code ticket")
		}
		return nil, fmt.Errorf("sqlite_verification_repo_acquire_failed: %w", err)
	}
	return v, nil
}

// Consume bumps the try count and lets check decide the outcome.
func (repository *SQLiteRepository) Consume(context context.Context, clientTicket string, check CheckFunc) error {
	bumpQuery := fmt.Sprintf(`UPDATE %[1]s SET %[2]s = %[2]s + 1 WHERE %[3]s = ? RETURNING %[4]s`,
		schema.EmailVerification.Table, schema.EmailVerification.TryCount,
		schema.EmailVerification.ClientTicket, verificationColumns)
	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`,
		schema.EmailVerification.Table, schema.EmailVerification.ClientTicket)

	return sqlite.InTx(context, repository.db, func(tx *sql.Tx) error {
		v, err := scanSQLiteVerification(tx.QueryRowContext(context, bumpQuery, clientTicket))
		if err != nil && !dberr.IsNoRows(err) {
			return fmt.Errorf("sqlite_verification_repo_bump_failed: %w", err)
		}

		if err := check(v); err != nil {
			return sqlite.CommitWith(err)
		}

		if _, err := tx.ExecContext(context, deleteQuery, clientTicket); err != nil {
			return fmt.Errorf("sqlite_verification_repo_consume_failed: %w", err)
		}
		return nil
	})
}

// Delete removes a record by client ticket.
func (repository *SQLiteRepository) Delete(context context.Context, clientTicket string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`,
		schema.EmailVerification.Table, schema.EmailVerification.ClientTicket)

	if _, err := repository.db.ExecContext(context, query, clientTicket); err != nil {
		return fmt.Errorf("sqlite_verification_repo_delete_failed: %w", err)
	}
	return nil
}

// DeleteCreatedBefore removes every record created before cutoff.
func (repository *SQLiteRepository) DeleteCreatedBefore(context context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s < ?`,
		schema.EmailVerification.Table, schema.EmailVerification.CreatedAt)

	result, err := repository.db.ExecContext(context, query, sqlite.Millis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("sqlite_verification_repo_prune_failed: %w", err)
	}
	return result.RowsAffected()
}

func scanSQLiteVerification(row *sql.Row) (*Verification, error) {
	var (
		v         = &Verification{}
		createdAt int64
	)
	err := row.Scan(
		&v.ClientTicket, &v.Email, &v.CodeTicketHash, &v.Code, &v.TryCount, &createdAt, &v.Purpose, &v.UserID,
	)
	if err != nil {
		return nil, err
	}
	v.CreatedAt = sqlite.Time(createdAt)
	return v, nil
}

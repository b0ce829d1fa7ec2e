// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/database/schema"
	"github.com/taibuivan/sleeporgive/internal/platform/dberr"
	"github.com/taibuivan/sleeporgive/internal/platform/sqlite"
)

// ClaimLease is how long a row claimed on SQLite stays hidden from other
// claimers while it is being sent. A worker that dies mid-send leaves the
// row claimable again once the lease runs out.
const ClaimLease = 5 * time.Minute

// SQLiteRepository implements [Repository] on the embedded database.
//
// SQLite has no row locks and the pool holds a single connection, so a
// claim is a lease written in one short transaction. The send runs outside
// any transaction and its outcome is recorded in a second statement.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite mail queue.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert enqueues a new row.
func (repository *SQLiteRepository) Insert(context context.Context, mail *OutgoingMail) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		schema.OutgoingMail.Table, mailColumns)

	_, err := repository.db.ExecContext(context, query,
		mail.ID, mail.UserID, mail.Address, mail.Subject, mail.Content, mail.ContentPlain,
		mail.Status, mail.RetryCount, sqlite.NullMillis(mail.PauseUntil), mail.Purpose, mail.LastError,
		sqlite.Millis(mail.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite_mail_repo_insert_failed: %w", err)
	}
	return nil
}

/*
ClaimNext leases the next deliverable row, processes it and records the result.

Parameters:
  - context: context.Context
  - now: time.Time (Eligibility instant for pause_until, start of the lease)
  - process: ProcessFunc (Delivers and returns the transition)

Returns:
  - bool: Whether a row was claimed
  - error: Database failures
*/
func (repository *SQLiteRepository) ClaimNext(context context.Context, now time.Time, process ProcessFunc) (bool, error) {
	mail, err := repository.lease(context, now)
	if err != nil || mail == nil {
		return false, err
	}

	update := process(context, mail)

	query := fmt.Sprintf(`UPDATE %s SET %s = ?, %s = ?, %s = ?, %s = ? WHERE %s = ? AND %s = '%s'`,
		schema.OutgoingMail.Table, schema.OutgoingMail.Status, schema.OutgoingMail.RetryCount,
		schema.OutgoingMail.PauseUntil, schema.OutgoingMail.LastError,
		schema.OutgoingMail.ID, schema.OutgoingMail.Status, StatusPending)

	if _, err := repository.db.ExecContext(context, query,
		update.Status, update.RetryCount, sqlite.NullMillis(update.PauseUntil), update.LastError, mail.ID,
	); err != nil {
		return true, fmt.Errorf("sqlite_mail_repo_update_failed: %w", err)
	}
	return true, nil
}

// lease picks the next deliverable row and pushes its pause_until past the
// lease in the same transaction. It returns nil when nothing is deliverable.
func (repository *SQLiteRepository) lease(context context.Context, now time.Time) (*OutgoingMail, error) {
	selectQuery := fmt.Sprintf(`SELECT %s FROM %s WHERE %s %s LIMIT 1`,
		mailColumns, schema.OutgoingMail.Table, fmt.Sprintf(claimableWhere, "?"), claimOrder)

	leaseQuery := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ?`,
		schema.OutgoingMail.Table, schema.OutgoingMail.PauseUntil, schema.OutgoingMail.ID)

	var leased *OutgoingMail
	err := sqlite.InTx(context, repository.db, func(tx *sql.Tx) error {
		mail, err := scanSQLiteMail(tx.QueryRowContext(context, selectQuery, sqlite.Millis(now)))
		if errors.Is(err, errNoMail) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(context, leaseQuery, sqlite.Millis(now.Add(ClaimLease)), mail.ID); err != nil {
			return fmt.Errorf("sqlite_mail_repo_lease_failed: %w", err)
		}
		leased = mail
		return nil
	})
	return leased, err
}

// NextPause returns the earliest future pause among Pending rows.
func (repository *SQLiteRepository) NextPause(context context.Context, now time.Time) (*time.Time, error) {
	query := fmt.Sprintf(`SELECT min(%s) FROM %s WHERE %s = '%s' AND %s > ?`,
		schema.OutgoingMail.PauseUntil, schema.OutgoingMail.Table, schema.OutgoingMail.Status, StatusPending,
		schema.OutgoingMail.PauseUntil)

	var next sql.NullInt64
	if err := repository.db.QueryRowContext(context, query, sqlite.Millis(now)).Scan(&next); err != nil {
		return nil, fmt.Errorf("sqlite_mail_repo_next_pause_failed: %w", err)
	}
	return sqlite.NullTime(next), nil
}

// Get loads one row by id.
func (repository *SQLiteRepository) Get(context context.Context, id string) (*OutgoingMail, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`, mailColumns, schema.OutgoingMail.Table, schema.OutgoingMail.ID)

	mail, err := scanSQLiteMail(repository.db.QueryRowContext(context, query, id))
	if errors.Is(err, errNoMail) {
		return nil, apperr.NotFound("Mail")
	}
	return mail, err
}

func scanSQLiteMail(row *sql.Row) (*OutgoingMail, error) {
	var (
		mail       = &OutgoingMail{}
		pauseUntil sql.NullInt64
		createdAt  int64
	)
	err := row.Scan(
		&mail.ID, &mail.UserID, &mail.Address, &mail.Subject, &mail.Content, &mail.ContentPlain,
		&mail.Status, &mail.RetryCount, &pauseUntil, &mail.Purpose, &mail.LastError, &createdAt,
	)
	if dberr.IsNoRows(err) {
		return nil, errNoMail
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite_mail_repo_scan_failed: %w", err)
	}
	mail.PauseUntil = sqlite.NullTime(pauseUntil)
	mail.CreatedAt = sqlite.Time(createdAt)
	return mail, nil
}

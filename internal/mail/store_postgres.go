// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"context"
	"errors"
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

// NewPostgresRepository creates a new PostgreSQL mail queue.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var mailColumns = strings.Join(schema.OutgoingMail.Columns(), ", ")

// claimableWhere selects Pending rows whose pause has elapsed; the single
// placeholder is the claim instant.
var claimableWhere = fmt.Sprintf(`%s = '%s' AND (%s IS NULL OR %s <= %%s)`,
	schema.OutgoingMail.Status, StatusPending, schema.OutgoingMail.PauseUntil, schema.OutgoingMail.PauseUntil)

// claimOrder drains rows with fewer retries first.
var claimOrder = fmt.Sprintf(`ORDER BY %s, %s`, schema.OutgoingMail.RetryCount, schema.OutgoingMail.ID)

// Insert enqueues a new row.
func (repository *PostgresRepository) Insert(context context.Context, mail *OutgoingMail) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		schema.OutgoingMail.Table, mailColumns)

	_, err := repository.pool.Exec(context, query,
		mail.ID, mail.UserID, mail.Address, mail.Subject, mail.Content, mail.ContentPlain,
		mail.Status, mail.RetryCount, mail.PauseUntil, mail.Purpose, mail.LastError, mail.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_mail_repo_insert_failed: %w", err)
	}
	return nil
}

/*
ClaimNext claims the next deliverable row with FOR UPDATE SKIP LOCKED.

Rows locked by a concurrent worker are skipped rather than waited on, so a
message that keeps failing never blocks the rest of the queue. The row lock
is held across the send, which pins one pool connection per worker.

Parameters:
  - context: context.Context
  - now: time.Time (Eligibility instant for pause_until)
  - process: ProcessFunc (Delivers and returns the transition)

Returns:
  - bool: Whether a row was claimed
  - error: Database failures
*/
func (repository *PostgresRepository) ClaimNext(context context.Context, now time.Time, process ProcessFunc) (bool, error) {
	claimQuery := fmt.Sprintf(`SELECT %s FROM %s WHERE %s %s LIMIT 1 FOR UPDATE SKIP LOCKED`,
		mailColumns, schema.OutgoingMail.Table, fmt.Sprintf(claimableWhere, "$1"), claimOrder)

	updateQuery := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3, %s = $4, %s = $5 WHERE %s = $1`,
		schema.OutgoingMail.Table, schema.OutgoingMail.Status, schema.OutgoingMail.RetryCount,
		schema.OutgoingMail.PauseUntil, schema.OutgoingMail.LastError, schema.OutgoingMail.ID)

	claimed := false
	err := postgres.InTx(context, repository.pool, postgres.ReadCommitted, func(tx pgx.Tx) error {
		mail, err := scanMail(tx.QueryRow(context, claimQuery, now))
		if errors.Is(err, errNoMail) {
			return nil
		}
		if err != nil {
			return err
		}

		claimed = true
		update := process(context, mail)

		if _, err := tx.Exec(context, updateQuery,
			mail.ID, update.Status, update.RetryCount, update.PauseUntil, update.LastError,
		); err != nil {
			return fmt.Errorf("postgres_mail_repo_update_failed: %w", err)
		}
		return nil
	})
	return claimed, err
}

// NextPause returns the earliest future pause among Pending rows.
func (repository *PostgresRepository) NextPause(context context.Context, now time.Time) (*time.Time, error) {
	query := fmt.Sprintf(`SELECT min(%s) FROM %s WHERE %s = '%s' AND %s > $1`,
		schema.OutgoingMail.PauseUntil, schema.OutgoingMail.Table, schema.OutgoingMail.Status, StatusPending,
		schema.OutgoingMail.PauseUntil)

	var next *time.Time
	if err := repository.pool.QueryRow(context, query, now).Scan(&next); err != nil {
		return nil, fmt.Errorf("postgres_mail_repo_next_pause_failed: %w", err)
	}
	return next, nil
}

// Get loads one row by id.
func (repository *PostgresRepository) Get(context context.Context, id string) (*OutgoingMail, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, mailColumns, schema.OutgoingMail.Table, schema.OutgoingMail.ID)

	mail, err := scanMail(repository.pool.QueryRow(context, query, id))
	if errors.Is(err, errNoMail) {
		return nil, apperr.NotFound("Mail")
	}
	return mail, err
}

var errNoMail = errors.New("no mail")

func scanMail(row pgx.Row) (*OutgoingMail, error) {
	mail := &OutgoingMail{}
	err := row.Scan(
		&mail.ID, &mail.UserID, &mail.Address, &mail.Subject, &mail.Content, &mail.ContentPlain,
		&mail.Status, &mail.RetryCount, &mail.PauseUntil, &mail.Purpose, &mail.LastError, &mail.CreatedAt,
	)
	if dberr.IsNoRows(err) {
		return nil, errNoMail
	}
	if err != nil {
		return nil, fmt.Errorf("postgres_mail_repo_scan_failed: %w", err)
	}
	return mail, nil
}

// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package postgres

import (
	stdctx "context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes the stores branch on.
const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// InTx runs fn inside a transaction with the given options.
//
// The transaction commits when fn returns nil or when fn asks for it through
// [CommitWith]; any other error rolls it back.
func InTx(context stdctx.Context, pool *pgxpool.Pool, options pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(context, options)
	if err != nil {
		return fmt.Errorf("postgres_begin_failed: %w", err)
	}
	defer func() { _ = tx.Rollback(context) }()

	fnErr := fn(tx)

	var keep *commitError
	if fnErr != nil && !errors.As(fnErr, &keep) {
		return fnErr
	}

	if err := tx.Commit(context); err != nil {
		return fmt.Errorf("postgres_commit_failed: %w", err)
	}

	if keep != nil {
		return keep.err
	}
	return nil
}

// Serializable is the isolation used by multi-statement read-modify-write flows.
var Serializable = pgx.TxOptions{IsoLevel: pgx.Serializable}

// ReadCommitted is used where row locks already provide the needed isolation.
var ReadCommitted = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// commitError marks an error that must be returned only after the transaction commits.
type commitError struct{ err error }

func (e *commitError) Error() string { return e.err.Error() }
func (e *commitError) Unwrap() error { return e.err }

// CommitWith makes [InTx] commit the work done so far and then return err.
//
// It is used when a failed business check must still persist a side effect,
// such as a consumed verification try.
func CommitWith(err error) error {
	if err == nil {
		return nil
	}
	return &commitError{err: err}
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation
}

// IsSerializationFailure reports whether err aborted a serializable transaction.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		(pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected)
}

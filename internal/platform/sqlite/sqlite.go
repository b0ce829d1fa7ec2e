// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sqlite provides the embedded relational store used for local
development and for every store and service test.

It opens a modernc.org/sqlite database (pure Go, no cgo), applies the embedded
goose migrations and hands back a plain *sql.DB. The schema mirrors the
PostgreSQL one; timestamps are stored as INTEGER unix milliseconds so that
window and TTL comparisons stay numeric.

Usage:

	db, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
	    return err
	}
	defer db.Close()
*/
package sqlite

import (
	stdctx "context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// pragmas are applied to the single pooled connection.
var pragmas = []string{
	"PRAGMA journal_mode = WAL;",
	"PRAGMA synchronous = NORMAL;",
	"PRAGMA foreign_keys = ON;",
	"PRAGMA busy_timeout = 5000;",
}

// Open creates the database at path (":memory:" for tests) and migrates it.
//
// The pool is pinned to one connection: SQLite serialises writers anyway and
// an in-memory database exists only inside the connection that created it.
func Open(context stdctx.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(context); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(context, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: failed to set pragma: %w", err)
		}
	}

	if err := migrate(context, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// migrate applies every pending embedded migration.
func migrate(context stdctx.Context, db *sql.DB) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: migrations fs: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create migration provider: %w", err)
	}

	if _, err := provider.Up(context); err != nil {
		return fmt.Errorf("sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies that the database answers.
func Ping(context stdctx.Context, db *sql.DB) error {
	pingCtx, cancel := stdctx.WithTimeout(context, 2*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// # Transactions

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// InTx runs fn inside a transaction. It commits when fn returns nil or an
// error wrapped by [CommitWith]; otherwise it rolls back.
func InTx(context stdctx.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(context, nil)
	if err != nil {
		return fmt.Errorf("sqlite_begin_failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	fnErr := fn(tx)

	var keep *commitError
	if fnErr != nil && !errors.As(fnErr, &keep) {
		return fnErr
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite_commit_failed: %w", err)
	}

	if keep != nil {
		return keep.err
	}
	return nil
}

type commitError struct{ err error }

func (e *commitError) Error() string { return e.err.Error() }
func (e *commitError) Unwrap() error { return e.err }

// CommitWith makes [InTx] commit and then return err.
func CommitWith(err error) error {
	if err == nil {
		return nil
	}
	return &commitError{err: err}
}

// # Time Encoding

// Millis encodes t as unix milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Time decodes unix milliseconds into a UTC time.
func Time(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// NullMillis encodes an optional time.
func NullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

// NullTime decodes an optional unix-milliseconds column.
func NullTime(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := Time(value.Int64)
	return &t
}

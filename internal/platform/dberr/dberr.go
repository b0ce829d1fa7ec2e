// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
//
// It understands both backends: pgx for PostgreSQL and database/sql for the
// embedded SQLite store.
package dberr

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/postgres"
)

// IsNoRows reports whether err means the query matched no row on either backend.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
//
// resource names the entity for NotFound messages (e.g. "Session").
func Wrap(err error, resource string) error {
	if err == nil {
		return nil
	}

	// Already classified further down.
	if apperr.IsAppError(err) {
		return err
	}

	// 1. Not Found mapping
	if IsNoRows(err) {
		return apperr.NotFound(resource)
	}

	// 2. A serializable transaction lost to a concurrent writer.
	if postgres.IsSerializationFailure(err) {
		return apperr.TransientConflict("Concurrent update detected, please retry")
	}

	// 3. Unknown query errors become Internal Server Errors
	return apperr.Internal(err)
}

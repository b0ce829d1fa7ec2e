// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/database/schema"
	"github.com/taibuivan/sleeporgive/internal/platform/dberr"
	"github.com/taibuivan/sleeporgive/internal/platform/sqlite"
)

// SQLiteRepository implements [Repository] on the embedded database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite session repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create stores the hashed halves of a new session.
func (repository *SQLiteRepository) Create(context context.Context, session *Session) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?)`, schema.Sessions.Table, sessionColumns)

	_, err := repository.db.ExecContext(context, query,
		session.BearerHash, session.CookieHash, session.UserID, session.Provenance, sqlite.Millis(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite_session_repo_create_failed: %w", err)
	}
	return nil
}

// FindByBearer loads a session by its bearer hash.
func (repository *SQLiteRepository) FindByBearer(context context.Context, bearerHash []byte) (*Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`, sessionColumns, schema.Sessions.Table, schema.Sessions.BearerHash)

	var (
		session   = &Session{}
		createdAt int64
	)
	err := repository.db.QueryRowContext(context, query, bearerHash).Scan(
		&session.BearerHash, &session.CookieHash, &session.UserID, &session.Provenance, &createdAt,
	)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("sqlite_session_repo_find_failed: %w", err)
	}
	session.CreatedAt = sqlite.Time(createdAt)
	return session, nil
}

// Delete removes a session by bearer hash.
func (repository *SQLiteRepository) Delete(context context.Context, bearerHash []byte) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, schema.Sessions.Table, schema.Sessions.BearerHash)

	if _, err := repository.db.ExecContext(context, query, bearerHash); err != nil {
		return fmt.Errorf("sqlite_session_repo_delete_failed: %w", err)
	}
	return nil
}

// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/database/schema"
	"github.com/taibuivan/sleeporgive/internal/platform/dberr"
)

// PostgresRepository implements [Repository] using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL session repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var sessionColumns = strings.Join(schema.Sessions.Columns(), ", ")

/*
Create stores the hashed halves of a new session.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: Wrapped database errors
*/
func (repository *PostgresRepository) Create(context context.Context, session *Session) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5)`, schema.Sessions.Table, sessionColumns)

	_, err := repository.pool.Exec(context, query,
		session.BearerHash, session.CookieHash, session.UserID, session.Provenance, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_create_failed: %w", err)
	}
	return nil
}

// FindByBearer loads a session by its bearer hash.
func (repository *PostgresRepository) FindByBearer(context context.Context, bearerHash []byte) (*Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, sessionColumns, schema.Sessions.Table, schema.Sessions.BearerHash)

	session := &Session{}
	err := repository.pool.QueryRow(context, query, bearerHash).Scan(
		&session.BearerHash, &session.CookieHash, &session.UserID, &session.Provenance, &session.CreatedAt,
	)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("postgres_session_repo_find_failed: %w", err)
	}
	return session, nil
}

// Delete removes a session by bearer hash.
func (repository *PostgresRepository) Delete(context context.Context, bearerHash []byte) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, schema.Sessions.Table, schema.Sessions.BearerHash)

	if _, err := repository.pool.Exec(context, query, bearerHash); err != nil {
		return fmt.Errorf("postgres_session_repo_delete_failed: %w", err)
	}
	return nil
}

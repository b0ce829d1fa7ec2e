// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package users

import (
	"context"
	"fmt"
	"strings"

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

// NewPostgresRepository creates a new PostgreSQL implementation of [Repository].
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var userColumns = strings.Join(schema.Users.Columns(), ", ")

/*
Create persists a new user record.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist, ID and CreatedAt already set)

Returns:
  - error: apperr.Conflict on a duplicate username/email, wrapped database errors otherwise
*/
func (repository *PostgresRepository) Create(context context.Context, user *User) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6)`, schema.Users.Table, userColumns)

	_, err := repository.pool.Exec(context, query,
		user.ID, user.Username, user.PrimaryEmail, user.DisplayName, user.IsAdmin, user.CreatedAt,
	)
	if postgres.IsUniqueViolation(err) {
		return apperr.Conflict("A user already exists with this username or email.")
	}
	if err != nil {
		return fmt.Errorf("postgres_user_repo_create_failed: %w", err)
	}
	return nil
}

// FindByID retrieves a user by primary key.
func (repository *PostgresRepository) FindByID(context context.Context, id string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, userColumns, schema.Users.Table, schema.Users.ID)
	return repository.scanOne(repository.pool.QueryRow(context, query, id))
}

// FindByEmail retrieves a user by primary email, ignoring case.
func (repository *PostgresRepository) FindByEmail(context context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE lower(%s) = lower($1)`,
		userColumns, schema.Users.Table, schema.Users.PrimaryEmail)
	return repository.scanOne(repository.pool.QueryRow(context, query, email))
}

// Taken reports which identifiers are already registered.
func (repository *PostgresRepository) Taken(context context.Context, username, email string) (bool, bool, error) {
	query := fmt.Sprintf(`
		SELECT
			$1 <> '' AND EXISTS (SELECT 1 FROM %[1]s WHERE lower(%[2]s) = lower($1)),
			$2 <> '' AND EXISTS (SELECT 1 FROM %[1]s WHERE lower(%[3]s) = lower($2))`,
		schema.Users.Table, schema.Users.Username, schema.Users.PrimaryEmail)

	var usernameTaken, emailTaken bool
	if err := repository.pool.QueryRow(context, query, username, email).Scan(&usernameTaken, &emailTaken); err != nil {
		return false, false, fmt.Errorf("postgres_user_repo_taken_failed: %w", err)
	}
	return usernameTaken, emailTaken, nil
}

func (repository *PostgresRepository) scanOne(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(&user.ID, &user.Username, &user.PrimaryEmail, &user.DisplayName, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_scan_failed: %w", err)
	}
	return user, nil
}

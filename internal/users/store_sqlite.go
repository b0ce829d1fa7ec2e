// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package users

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

// NewSQLiteRepository creates a new SQLite implementation of [Repository].
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create persists a new user record.
func (repository *SQLiteRepository) Create(context context.Context, user *User) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?)`, schema.Users.Table, userColumns)

	_, err := repository.db.ExecContext(context, query,
		user.ID, user.Username, user.PrimaryEmail, user.DisplayName, user.IsAdmin, sqlite.Millis(user.CreatedAt),
	)
	if sqlite.IsUniqueViolation(err) {
		return apperr.Conflict("A user already exists with this username or email.")
	}
	if err != nil {
		return fmt.Errorf("sqlite_user_repo_create_failed: %w", err)
	}
	return nil
}

// FindByID retrieves a user by primary key.
func (repository *SQLiteRepository) FindByID(context context.Context, id string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`, userColumns, schema.Users.Table, schema.Users.ID)
	return repository.scanOne(repository.db.QueryRowContext(context, query, id))
}

// FindByEmail retrieves a user by primary email, ignoring case.
func (repository *SQLiteRepository) FindByEmail(context context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE lower(%s) = lower(?)`,
		userColumns, schema.Users.Table, schema.Users.PrimaryEmail)
	return repository.scanOne(repository.db.QueryRowContext(context, query, email))
}

// Taken reports which identifiers are already registered.
func (repository *SQLiteRepository) Taken(context context.Context, username, email string) (bool, bool, error) {
	query := fmt.Sprintf(`
		SELECT
			?1 <> '' AND EXISTS (SELECT 1 FROM %[1]s WHERE lower(%[2]s) = lower(?1)),
			?2 <> '' AND EXISTS (SELECT 1 FROM %[1]s WHERE lower(%[3]s) = lower(?2))`,
		schema.Users.Table, schema.Users.Username, schema.Users.PrimaryEmail)

	var usernameTaken, emailTaken bool
	if err := repository.db.QueryRowContext(context, query, username, email).Scan(&usernameTaken, &emailTaken); err != nil {
		return false, false, fmt.Errorf("sqlite_user_repo_taken_failed: %w", err)
	}
	return usernameTaken, emailTaken, nil
}

func (repository *SQLiteRepository) scanOne(row *sql.Row) (*User, error) {
	var (
		user      = &User{}
		createdAt int64
	)
	err := row.Scan(&user.ID, &user.Username, &user.PrimaryEmail, &user.DisplayName, &user.IsAdmin, &createdAt)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("sqlite_user_repo_scan_failed: %w", err)
	}
	user.CreatedAt = sqlite.Time(createdAt)
	return user, nil
}

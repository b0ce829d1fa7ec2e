// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package users

import "context"

// Repository defines the persistence operations for accounts.
type Repository interface {

	// Create inserts a user. A taken username or email is an apperr.Conflict.
	Create(context context.Context, user *User) error

	// FindByID returns apperr.NotFound when the id is unknown.
	FindByID(context context.Context, id string) (*User, error)

	// FindByEmail matches the primary email case-insensitively.
	FindByEmail(context context.Context, email string) (*User, error)

	// Taken reports which of username and email already belong to an account.
	// Empty arguments are never reported as taken.
	Taken(context context.Context, username, email string) (usernameTaken, emailTaken bool, err error)
}

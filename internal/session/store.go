// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import "context"

// Repository defines session persistence.
type Repository interface {
	Create(context context.Context, session *Session) error

	// FindByBearer returns apperr.NotFound when no row carries bearerHash.
	FindByBearer(context context.Context, bearerHash []byte) (*Session, error)

	// Delete removes the row; a missing row is not an error.
	Delete(context context.Context, bearerHash []byte) error
}

// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/sec"
	"github.com/taibuivan/sleeporgive/internal/users"
)

// UserFinder loads the account behind a session.
type UserFinder interface {
	Get(context context.Context, id string) (*users.User, error)
}

// Service creates, validates and revokes sessions.
type Service struct {
	repo   Repository
	users  UserFinder
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a session service.
func NewService(repo Repository, users UserFinder, logger *slog.Logger) *Service {
	return &Service{repo: repo, users: users, logger: logger, now: time.Now}
}

/*
Create mints a bearer and a cookie for userID.

Parameters:
  - context: context.Context
  - userID: string
  - provenance: []byte (Hashed auth-attempt ticket, kept for audit)

Returns:
  - Credentials: The two plaintext tokens, never recoverable later
  - error: apperr.Internal on failure
*/
func (service *Service) Create(context context.Context, userID string, provenance []byte) (Credentials, error) {
	bearer, err := sec.GenerateSecureToken()
	if err != nil {
		return Credentials{}, apperr.Internal(err)
	}
	cookie, err := sec.GenerateSecureToken()
	if err != nil {
		return Credentials{}, apperr.Internal(err)
	}

	session := &Session{
		BearerHash: bearer.Hash,
		CookieHash: cookie.Hash,
		UserID:     userID,
		Provenance: provenance,
		CreatedAt:  service.now().UTC(),
	}
	if err := service.repo.Create(context, session); err != nil {
		return Credentials{}, apperr.Internal(err)
	}

	service.logger.InfoContext(context, "session_created", slog.String("user_id", userID))
	return Credentials{Bearer: bearer.Plaintext, Cookie: cookie.Plaintext}, nil
}

/*
Validate resolves a bearer (and cookie) into the owning user.

A missing session, a cookie mismatch and a malformed token all return
(nil, nil) so that no distinction leaks to the caller.

Parameters:
  - context: context.Context
  - bearer: string
  - cookie: string (May be empty when the session has no cookie half)

Returns:
  - *users.User: The account, or nil when the pair is not a live session
  - error: apperr.Internal on storage failure only
*/
func (service *Service) Validate(context context.Context, bearer, cookie string) (*users.User, error) {
	user, _, err := service.validate(context, bearer, cookie)
	return user, err
}

// Principal implements the session verifier used by the HTTP middleware.
func (service *Service) Principal(context context.Context, bearer, cookie string) (*sec.Principal, error) {
	user, bearerHash, err := service.validate(context, bearer, cookie)
	if err != nil || user == nil {
		return nil, err
	}
	return user.Principal(bearerHash), nil
}

func (service *Service) validate(context context.Context, bearer, cookie string) (*users.User, []byte, error) {
	bearerHash := sec.HashToken(bearer)
	if bearerHash == nil {
		return nil, nil, nil
	}

	session, err := service.repo.FindByBearer(context, bearerHash)
	if apperr.IsNotFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}

	if len(session.CookieHash) > 0 && !sec.EqualHash(sec.HashToken(cookie), session.CookieHash) {
		return nil, nil, nil
	}

	user, err := service.users.Get(context, session.UserID)
	if apperr.IsNotFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}

	return user, bearerHash, nil
}

// Revoke deletes the session behind bearer. Unknown or malformed bearers are a no-op.
func (service *Service) Revoke(context context.Context, bearer string) error {
	bearerHash := sec.HashToken(bearer)
	if bearerHash == nil {
		return nil
	}
	if err := service.repo.Delete(context, bearerHash); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

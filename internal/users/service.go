// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package users

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/validate"
	"github.com/taibuivan/sleeporgive/pkg/uuid"
)

// Service handles account lookups and registration.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new users service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Get returns the account with the given id.
func (service *Service) Get(context context.Context, id string) (*User, error) {
	return service.repo.FindByID(context, id)
}

/*
LookupEmail resolves the account that owns email.

Returns:
  - *User: The account
  - error: apperr.NotFound("User") when no account uses this address
*/
func (service *Service) LookupEmail(context context.Context, email string) (*User, error) {
	if err := new(validate.Validator).Email(FieldEmail, email).Err(); err != nil {
		return nil, err
	}
	return service.repo.FindByEmail(context, email)
}

// EnsureEmailAvailable fails with Conflict when email is already registered.
func (service *Service) EnsureEmailAvailable(context context.Context, email string) error {
	if err := new(validate.Validator).Email(FieldEmail, email).Err(); err != nil {
		return err
	}

	_, taken, err := service.repo.Taken(context, "", email)
	if err != nil {
		return apperr.Internal(err)
	}
	if taken {
		return apperr.Conflict("A user already exists with this email. Try logging in instead?")
	}
	return nil
}

// EnsureUsernameAvailable fails with Conflict when username is already taken.
func (service *Service) EnsureUsernameAvailable(context context.Context, username string) error {
	if err := new(validate.Validator).Username(FieldUsername, username).Err(); err != nil {
		return err
	}

	taken, _, err := service.repo.Taken(context, username, "")
	if err != nil {
		return apperr.Internal(err)
	}
	if taken {
		return apperr.Conflict("Username already taken")
	}
	return nil
}

// ValidateRegistration checks the sign-up payload without touching storage.
func (service *Service) ValidateRegistration(input RegisterInput) error {
	return new(validate.Validator).
		Username(FieldUsername, input.Username).
		Email(FieldEmail, input.Email).
		MaxLen(FieldDisplayName, input.DisplayName, 64).
		Err()
}

/*
Register creates an account after validating and checking uniqueness.

The email must already be proven by the caller.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: The persisted account
  - error: Validation, Conflict or Internal errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*User, error) {
	if err := service.ValidateRegistration(input); err != nil {
		return nil, err
	}

	usernameTaken, emailTaken, err := service.repo.Taken(context, input.Username, input.Email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if usernameTaken {
		return nil, apperr.Conflict("A user already exists with this username.")
	}
	if emailTaken {
		return nil, apperr.Conflict("A user already exists with this email.")
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = input.Username
	}

	user := &User{
		ID:           uuid.New(),
		Username:     input.Username,
		PrimaryEmail: input.Email,
		DisplayName:  displayName,
		CreatedAt:    service.now().UTC().Truncate(time.Millisecond),
	}

	if err := service.repo.Create(context, user); err != nil {
		if apperr.IsAppError(err) {
			return nil, err
		}
		return nil, apperr.Internal(err)
	}

	service.logger.InfoContext(context, "user_registered", slog.String("user_id", user.ID))
	return user, nil
}

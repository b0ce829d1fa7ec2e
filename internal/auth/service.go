// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/dberr"
	"github.com/taibuivan/sleeporgive/internal/platform/sec"
	"github.com/taibuivan/sleeporgive/internal/platform/validate"
	"github.com/taibuivan/sleeporgive/internal/session"
	"github.com/taibuivan/sleeporgive/internal/users"
	"github.com/taibuivan/sleeporgive/internal/verification"
)

// # Collaborators

// Verifier issues and checks email verifications.
type Verifier interface {
	Create(context context.Context, clientTicket, address string, purpose verification.Purpose, userID string) error
	Check(context context.Context, clientTicket, code, email string) error
}

// SessionIssuer mints the session granted by a successful attempt.
type SessionIssuer interface {
	Create(context context.Context, userID string, provenance []byte) (session.Credentials, error)
}

// UserDirectory is the slice of the users service needed for login and sign-up.
type UserDirectory interface {
	Get(context context.Context, id string) (*users.User, error)
	LookupEmail(context context.Context, email string) (*users.User, error)
	EnsureEmailAvailable(context context.Context, email string) error
	EnsureUsernameAvailable(context context.Context, username string) error
	ValidateRegistration(input users.RegisterInput) error
	Register(context context.Context, input users.RegisterInput) (*users.User, error)
}

// # Service

// Service drives auth attempts from the first request to the issued session.
type Service struct {
	repo     Repository
	verifier Verifier
	sessions SessionIssuer
	users    UserDirectory
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises a [Service].
type Option func(*Service)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(service *Service) { service.now = now }
}

// NewService creates an auth service.
func NewService(repo Repository, verifier Verifier, sessions SessionIssuer, users UserDirectory, logger *slog.Logger, options ...Option) *Service {
	service := &Service{
		repo:     repo,
		verifier: verifier,
		sessions: sessions,
		users:    users,
		logger:   logger,
		now:      time.Now,
	}
	for _, option := range options {
		option(service)
	}
	return service
}

// # State Machine

// StartAttempt creates the attempt for ticketHash, resetting any earlier one.
func (service *Service) StartAttempt(context context.Context, userID string, ticketHash []byte, clientAddr string, state State) error {
	attempt := &Attempt{
		TicketHash: ticketHash,
		UserID:     userID,
		State:      state,
		IPAddr:     clientAddr,
		StartedAt:  service.now().UTC().Truncate(time.Millisecond),
	}
	if err := service.repo.Start(context, attempt); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

/*
GetAttemptState loads the state and owner of an attempt.

Returns:
  - State: The current state
  - string: The user the attempt authenticates
  - error: apperr.NotFound when no attempt uses this ticket
*/
func (service *Service) GetAttemptState(context context.Context, ticketHash []byte) (State, string, error) {
	attempt, err := service.repo.Get(context, ticketHash)
	if err != nil {
		return State{}, "", dberr.Wrap(err, "Auth attempt")
	}
	return attempt.State, attempt.UserID, nil
}

// UpdateAttemptState swaps expected for next, or fails with a retryable conflict.
func (service *Service) UpdateAttemptState(context context.Context, ticketHash []byte, expected, next State) error {
	swapped, err := service.repo.UpdateState(context, ticketHash, expected, next)
	if err != nil {
		return apperr.Internal(err)
	}
	if !swapped {
		return apperr.TransientConflict("The login attempt changed concurrently. Please try again.")
	}
	return nil
}

/*
StartEmailSubflow mails a login code to the owner of the attempt.

An attempt that already has a verification ticket is returned unchanged, so a
repeated call sends no second mail.

Returns:
  - State: The state after the transition
  - error: RateLimited from the verification service, or CONCURRENT_UPDATE
*/
func (service *Service) StartEmailSubflow(context context.Context, ticketHash []byte) (State, error) {
	attempt, err := service.repo.Get(context, ticketHash)
	if err != nil {
		return State{}, dberr.Wrap(err, "Auth attempt")
	}
	if attempt.State.EmailVerificationClientTicket != "" {
		return attempt.State, nil
	}

	user, err := service.users.Get(context, attempt.UserID)
	if err != nil {
		return State{}, dberr.Wrap(err, "User")
	}
	if !user.HasPrimaryEmail() {
		return State{}, apperr.ValidationError("This account has no email address to verify.")
	}

	ticket, err := sec.GenerateSecureToken()
	if err != nil {
		return State{}, apperr.Internal(err)
	}
	if err := service.verifier.Create(context, ticket.Plaintext, user.PrimaryEmail, verification.PurposeLogin, user.ID); err != nil {
		return State{}, err
	}

	next := attempt.State.withEmailTicket(ticket.Plaintext)
	if err := service.UpdateAttemptState(context, ticketHash, attempt.State, next); err != nil {
		return State{}, err
	}
	return next, nil
}

/*
SolveEmailSubflow checks the mailed code against the attempt's verification.

When the verification can no longer succeed, its ticket is dropped from the
state so the next request mails a fresh code; the original error is returned.

Returns:
  - State: The state with the sub-flow solved
  - error: Validation when no sub-flow was started, or the verification error
*/
func (service *Service) SolveEmailSubflow(context context.Context, ticketHash []byte, code string) (State, error) {
	attempt, err := service.repo.Get(context, ticketHash)
	if err != nil {
		return State{}, dberr.Wrap(err, "Auth attempt")
	}

	state := attempt.State
	if state.EmailVerificationClientTicket == "" {
		return State{}, apperr.ValidationError("Email verification has not been started.")
	}
	if state.EmailVerificationSolved {
		return state, nil
	}

	user, err := service.users.Get(context, attempt.UserID)
	if err != nil {
		return State{}, dberr.Wrap(err, "User")
	}

	if err := service.verifier.Check(context, state.EmailVerificationClientTicket, code, user.PrimaryEmail); err != nil {
		if appErr := apperr.As(err); appErr != nil && appErr.RequireNewCode {
			if resetErr := service.UpdateAttemptState(context, ticketHash, state, state.withoutEmailTicket()); resetErr != nil {
				service.logger.WarnContext(context, "auth_email_ticket_reset_failed", slog.String("error", resetErr.Error()))
			}
		}
		return State{}, err
	}

	next := state.solved()
	if err := service.UpdateAttemptState(context, ticketHash, state, next); err != nil {
		return State{}, err
	}
	return next, nil
}

// Completion is the outcome of a successful attempt.
type Completion struct {
	User        *users.User
	Credentials session.Credentials
}

/*
CompleteAttempt marks the attempt successful and mints its session.

Only one call per attempt can succeed; the others fail with a non-retryable
Conflict and mint nothing.

Parameters:
  - context: context.Context
  - ticketHash: []byte
  - expected: State (The state the caller judged successful)

Returns:
  - *Completion: The user and the new session credentials
  - error: Validation when expected does not authenticate, Conflict on a second success
*/
func (service *Service) CompleteAttempt(context context.Context, ticketHash []byte, expected State) (*Completion, error) {
	attempt, err := service.repo.Get(context, ticketHash)
	if err != nil {
		return nil, dberr.Wrap(err, "Auth attempt")
	}

	user, err := service.users.Get(context, attempt.UserID)
	if err != nil {
		return nil, dberr.Wrap(err, "User")
	}
	return service.complete(context, ticketHash, user, expected)
}

func (service *Service) complete(context context.Context, ticketHash []byte, user *users.User, expected State) (*Completion, error) {
	if !IsSuccessful(user, expected) {
		return nil, apperr.ValidationError("Insufficient information to authenticate.")
	}

	completed, err := service.repo.Complete(context, ticketHash, expected, service.now().UTC().Truncate(time.Millisecond))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !completed {
		return nil, apperr.Conflict("A session was already issued for this login attempt.")
	}

	credentials, err := service.sessions.Create(context, user.ID, ticketHash)
	if err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "auth_attempt_succeeded", slog.String("user_id", user.ID))
	return &Completion{User: user, Credentials: credentials}, nil
}

// # Flows

// AuthorizeInput is one POST to the login endpoint.
type AuthorizeInput struct {
	Ticket     string
	Email      string
	Code       string
	ClientAddr string
}

// AuthorizeResult is either "a mail was sent" or a completed login.
type AuthorizeResult struct {
	EmailSent  bool
	Completion *Completion
}

/*
Authorize advances the login attempt named by input.Ticket as far as the
supplied information allows.

# Flow
 1. Resolve the attempt, starting one from input.Email when none exists.
 2. Mail a code when the email matches and no sub-flow was started.
 3. Solve the sub-flow when a code is supplied.
 4. Complete the attempt once the state authenticates the user.

Returns:
  - *AuthorizeResult: EmailSent, or the completed login
  - error: Validation "Insufficient information to authenticate." when stuck
*/
func (service *Service) Authorize(context context.Context, input AuthorizeInput) (*AuthorizeResult, error) {
	if err := new(validate.Validator).Required(FieldTicket, input.Ticket).Err(); err != nil {
		return nil, err
	}
	ticketHash := sec.HashToken(input.Ticket)
	if ticketHash == nil {
		return nil, apperr.ValidationError("Invalid ticket.")
	}

	// ── 1. Resolve or Start ───────────────────────────────────────────────
	state, userID, err := service.GetAttemptState(context, ticketHash)
	if apperr.IsNotFound(err) {
		if input.Email == "" {
			return nil, apperr.ValidationError("Missing email.")
		}
		user, lookupErr := service.users.LookupEmail(context, input.Email)
		if lookupErr != nil {
			return nil, lookupErr
		}
		state, userID = State{}, user.ID
		if err := service.StartAttempt(context, userID, ticketHash, input.ClientAddr, state); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	user, err := service.users.Get(context, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "User")
	}

	// ── 2. Advance the Email Sub-flow ─────────────────────────────────────
	if !IsSuccessful(user, state) {
		if user.MatchesEmail(input.Email) && state.EmailVerificationClientTicket == "" {
			if _, err := service.StartEmailSubflow(context, ticketHash); err != nil {
				return nil, err
			}
			return &AuthorizeResult{EmailSent: true}, nil
		}

		if state.EmailVerificationClientTicket != "" && !state.EmailVerificationSolved && input.Code != "" {
			if err := new(validate.Validator).VerificationCode(FieldCode, input.Code).Err(); err != nil {
				return nil, err
			}
			if state, err = service.SolveEmailSubflow(context, ticketHash, input.Code); err != nil {
				return nil, err
			}
		}
	}

	// ── 3. Complete ───────────────────────────────────────────────────────
	if !IsSuccessful(user, state) {
		return nil, apperr.ValidationError("Insufficient information to authenticate.")
	}

	completion, err := service.complete(context, ticketHash, user, state)
	if err != nil {
		return nil, err
	}
	return &AuthorizeResult{Completion: completion}, nil
}

// SignUpInput is the create-user request.
type SignUpInput struct {
	EmailVerificationClientTicket string
	EmailVerificationCode         string
	Account                       users.RegisterInput
	ClientAddr                    string
}

/*
SignUp registers an account whose email was just verified and logs it in.

Conflicts are checked before the verification is consumed, so a taken
username does not burn the code.

Returns:
  - *Completion: The new user and its first session
  - error: Validation, Conflict or the verification error
*/
func (service *Service) SignUp(context context.Context, input SignUpInput) (*Completion, error) {
	if err := new(validate.Validator).
		Ticket(FieldVerificationToken, input.EmailVerificationClientTicket).
		VerificationCode(FieldVerificationCode, input.EmailVerificationCode).
		Err(); err != nil {
		return nil, err
	}
	if err := service.users.ValidateRegistration(input.Account); err != nil {
		return nil, err
	}

	// 1. Refuse taken names before spending a try.
	if err := service.users.EnsureUsernameAvailable(context, input.Account.Username); err != nil {
		return nil, err
	}
	if err := service.users.EnsureEmailAvailable(context, input.Account.Email); err != nil {
		return nil, err
	}

	// 2. Consume the sign-up verification.
	if err := service.verifier.Check(context, input.EmailVerificationClientTicket, input.EmailVerificationCode, input.Account.Email); err != nil {
		return nil, err
	}

	// 3. Create the account and log it in through an auto-login attempt.
	user, err := service.users.Register(context, input.Account)
	if err != nil {
		return nil, err
	}

	ticket, err := sec.GenerateSecureToken()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	state := State{FirstSignUpAutoLogin: true}
	if err := service.StartAttempt(context, user.ID, ticket.Hash, input.ClientAddr, state); err != nil {
		return nil, err
	}
	return service.complete(context, ticket.Hash, user, state)
}

// Prune deletes unsuccessful attempts older than [StaleAttemptAge]. It is run by the housekeeping job.
func (service *Service) Prune(context context.Context) (int64, error) {
	return service.repo.DeleteStaleBefore(context, service.now().Add(-StaleAttemptAge))
}

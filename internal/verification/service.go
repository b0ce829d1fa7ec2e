// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package verification

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/taibuivan/sleeporgive/internal/mail"
	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/dberr"
	"github.com/taibuivan/sleeporgive/internal/platform/sec"
	"github.com/taibuivan/sleeporgive/internal/platform/validate"
	"github.com/taibuivan/sleeporgive/internal/ratelimit"
	"github.com/taibuivan/sleeporgive/internal/users"
	"github.com/taibuivan/sleeporgive/pkg/pointer"
)

// # Collaborators

// Limiter is the slice of the rate limit service used before sending mail.
type Limiter interface {
	Enforce(context context.Context, limiter ratelimit.Limiter, what string) (ratelimit.Decision, error)
}

// Mailer queues outgoing mail.
type Mailer interface {
	Enqueue(context context.Context, draft mail.Draft) (string, error)
}

// UserFinder resolves the greeting name of a known user.
type UserFinder interface {
	Get(context context.Context, id string) (*users.User, error)
}

// Config holds the verification policy and mail branding.
type Config struct {
	AppName  string
	Origin   string
	TTL      time.Duration
	MaxTries int
}

// # Service

// Service issues and checks email verifications.
type Service struct {
	repo    Repository
	limiter Limiter
	mailer  Mailer
	users   UserFinder
	config  Config
	logger  *slog.Logger
	now     func() time.Time
}

// Option customises a [Service].
type Option func(*Service)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(service *Service) { service.now = now }
}

// NewService creates a verification service. Zero TTL or MaxTries fall back to the defaults.
func NewService(repo Repository, limiter Limiter, mailer Mailer, users UserFinder, config Config, logger *slog.Logger, options ...Option) *Service {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.MaxTries <= 0 {
		config.MaxTries = DefaultMaxTries
	}

	service := &Service{
		repo:    repo,
		limiter: limiter,
		mailer:  mailer,
		users:   users,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
	for _, option := range options {
		option(service)
	}
	return service
}

/*
Create starts a verification of address and mails the code link.

Repeating the call with the same client ticket, address and purpose is a
no-op. Reusing a ticket for another address or purpose is rejected.

Parameters:
  - context: context.Context
  - clientTicket: string (Client-held routing key)
  - address: string
  - purpose: Purpose
  - userID: string (Empty for sign-up)

Returns:
  - error: Validation, Conflict, RateLimited or Internal errors
*/
func (service *Service) Create(context context.Context, clientTicket, address string, purpose Purpose, userID string) error {
	if err := new(validate.Validator).
		Ticket(FieldClientTicket, clientTicket).
		Email(FieldEmail, address).
		Custom(FieldPurpose, !purpose.Valid(), "unknown verification purpose").
		Err(); err != nil {
		return err
	}

	// 1. An existing ticket is either an idempotent retry or a reuse.
	existing, err := service.repo.Find(context, clientTicket)
	switch {
	case err == nil:
		if existing.Email != address || existing.Purpose != purpose {
			return apperr.Conflict("Invalid verification request - client ticket reused.")
		}
		return nil
	case !apperr.IsNotFound(err):
		return dberr.Wrap(err, "Verification")
	}

	// 2. Both windows are bumped before anything is written.
	rateKey := cases.Fold().String(strings.TrimSpace(address)) + ":" + string(purpose)
	if _, err := service.limiter.Enforce(context, ratelimit.VerificationHourly.For(rateKey),
		"verification requests for this email this hour"); err != nil {
		return err
	}
	if _, err := service.limiter.Enforce(context, ratelimit.VerificationDaily.For(rateKey),
		"verification requests for this email today"); err != nil {
		return err
	}

	// 3. Persist the record with an unassigned code.
	codeTicket, err := sec.GenerateSecureToken()
	if err != nil {
		return apperr.Internal(err)
	}

	record := &Verification{
		ClientTicket:   clientTicket,
		Email:          address,
		CodeTicketHash: codeTicket.Hash,
		CreatedAt:      service.now().UTC().Truncate(time.Millisecond),
		Purpose:        purpose,
		UserID:         pointer.NilIfZero(userID),
	}

	inserted, err := service.repo.Insert(context, record)
	if err != nil {
		return apperr.Internal(err)
	}
	if !inserted {
		return apperr.TransientConflict("Transient database error. Please try again.")
	}

	// 4. Queue the mail; a refused mail must not leave a record nobody can solve.
	if err := service.enqueue(context, record, codeTicket.Plaintext); err != nil {
		if deleteErr := service.repo.Delete(context, clientTicket); deleteErr != nil {
			service.logger.ErrorContext(context, "verification_rollback_failed", slog.String("error", deleteErr.Error()))
		}
		return err
	}

	service.logger.InfoContext(context, "email_verification_created", slog.String("purpose", string(purpose)))
	return nil
}

// enqueue renders and queues the code link for record.
func (service *Service) enqueue(context context.Context, record *Verification, codeTicket string) error {
	data := emailData{
		AppName: service.config.AppName,
		Purpose: record.Purpose,
		Link:    codeLink(service.config.Origin, codeTicket),
		Expiry:  expiry(service.config.TTL),
	}

	userID := pointer.Val(record.UserID)
	if userID != "" && service.users != nil {
		user, err := service.users.Get(context, userID)
		if err != nil {
			return dberr.Wrap(err, "User")
		}
		data.Username = user.Username
	}

	html, text, err := render(data)
	if err != nil {
		return apperr.Internal(err)
	}

	_, err = service.mailer.Enqueue(context, mail.Draft{
		UserID:  userID,
		To:      record.Email,
		Subject: subject(service.config.AppName, record.Purpose),
		HTML:    html,
		Text:    text,
		Purpose: MailPurpose,
	})
	return err
}

/*
AcquireCode reveals the code behind a code ticket.

The first call assigns the code; every later call sees the same one.

Returns:
  - string: The six digit code
  - error: NotFound for an unknown ticket, Exhausted once the TTL elapsed
*/
func (service *Service) AcquireCode(context context.Context, codeTicket string) (string, error) {
	hash := sec.HashToken(codeTicket)
	if hash == nil {
		return "", apperr.NotFound("Code ticket")
	}

	candidate, err := sec.GenerateNumericCode(CodeDigits)
	if err != nil {
		return "", apperr.Internal(err)
	}

	record, err := service.repo.AcquireCode(context, hash, candidate)
	if err != nil {
		return "", dberr.Wrap(err, "Code ticket")
	}

	if record.Expired(service.now(), service.config.TTL) {
		return "", apperr.Exhausted("This code has expired.")
	}
	return pointer.Val(record.Code), nil
}

/*
Check consumes a verification when code and email match.

Every call spends one try, including rejected ones.

Parameters:
  - context: context.Context
  - clientTicket: string
  - code: string (User-entered code)
  - email: string (Address the caller claims to verify)

Returns:
  - error: Validation, IncorrectCode or Exhausted errors; RequireNewCode is
    set when the ticket can no longer succeed
*/
func (service *Service) Check(context context.Context, clientTicket, code, email string) error {
	if err := new(validate.Validator).
		Ticket(FieldClientTicket, clientTicket).
		VerificationCode(FieldCode, code).
		Email(FieldEmail, email).
		Err(); err != nil {
		return err
	}

	now := service.now()
	err := service.repo.Consume(context, clientTicket, func(record *Verification) error {
		return service.judge(record, code, email, now)
	})
	if err != nil {
		return dberr.Wrap(err, "Verification")
	}

	service.logger.InfoContext(context, "email_verification_consumed")
	return nil
}

// judge applies the checks in order; record.TryCount already includes this try.
func (service *Service) judge(record *Verification, code, email string, now time.Time) error {
	switch {
	case record == nil:
		return apperr.IncorrectCode("Incorrect verification code.", true)

	case record.Expired(now, service.config.TTL):
		return apperr.Exhausted("Verification code expired. Please get another code.")

	case record.TryCount >= service.config.MaxTries:
		return apperr.Exhausted("You have entered the code incorrectly too many times. Please check your email address and get another code.")

	case record.Email != email:
		return apperr.IncorrectCode("Email does not match verification request.", true)

	case record.Code == nil || !sec.EqualString(*record.Code, code):
		if record.TryCount == service.config.MaxTries-1 {
			return apperr.IncorrectCode("Incorrect verification code. You have one last chance to enter the code correctly.", false)
		}
		return apperr.IncorrectCode("Incorrect verification code.", false)
	}
	return nil
}

// Prune deletes every record past its TTL. It is run by the housekeeping job.
func (service *Service) Prune(context context.Context) (int64, error) {
	return service.repo.DeleteCreatedBefore(context, service.now().Add(-service.config.TTL))
}

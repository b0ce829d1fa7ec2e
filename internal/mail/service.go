// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/validate"
	"github.com/taibuivan/sleeporgive/internal/ratelimit"
	"github.com/taibuivan/sleeporgive/pkg/pointer"
	"github.com/taibuivan/sleeporgive/pkg/uuid"
)

// Limiter is the slice of the rate limit service used by Enqueue.
type Limiter interface {
	Enforce(context context.Context, limiter ratelimit.Limiter, what string) (ratelimit.Decision, error)
}

// Waker nudges the background scheduler.
type Waker interface {
	TriggerImmediate()
}

// Config holds the delivery policy.
type Config struct {
	From string

	// MessageIDHost is the right-hand side of generated Message-IDs.
	MessageIDHost string
	MaxRetries    int
	RetryBackoff  time.Duration
}

// Service enqueues and delivers mail.
type Service struct {
	repo      Repository
	limiter   Limiter
	transport Transport
	waker     Waker
	config    Config
	logger    *slog.Logger
	now       func() time.Time
}

// Option customises a [Service].
type Option func(*Service)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(service *Service) { service.now = now }
}

// NewService creates a mail service.
func NewService(repo Repository, limiter Limiter, transport Transport, waker Waker, config Config, logger *slog.Logger, options ...Option) *Service {
	service := &Service{
		repo:      repo,
		limiter:   limiter,
		transport: transport,
		waker:     waker,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
	for _, option := range options {
		option(service)
	}
	return service
}

/*
Enqueue stores draft as a Pending row and wakes the scheduler.

The global email limiter is bumped first; a denial is a RATE_LIMITED error and
nothing is stored.

Parameters:
  - context: context.Context
  - draft: Draft

Returns:
  - string: The id of the queued row
  - error: Validation, RateLimited or Internal errors
*/
func (service *Service) Enqueue(context context.Context, draft Draft) (string, error) {
	if err := new(validate.Validator).
		Email("to", draft.To).
		Required("subject", draft.Subject).
		Required("purpose", draft.Purpose).
		Err(); err != nil {
		return "", err
	}

	if _, err := service.limiter.Enforce(context, ratelimit.GlobalEmail, "emails sent"); err != nil {
		return "", err
	}

	mail := &OutgoingMail{
		ID:           uuid.New(),
		UserID:       pointer.NilIfZero(draft.UserID),
		Address:      draft.To,
		Subject:      draft.Subject,
		Content:      draft.HTML,
		ContentPlain: draft.Text,
		Status:       StatusPending,
		Purpose:      draft.Purpose,
		CreatedAt:    service.now().UTC(),
	}
	if err := service.repo.Insert(context, mail); err != nil {
		return "", apperr.Internal(err)
	}

	service.logger.InfoContext(context, "mail_enqueued",
		slog.String("mail_id", mail.ID),
		slog.String("purpose", mail.Purpose),
	)

	if service.waker != nil {
		service.waker.TriggerImmediate()
	}
	return mail.ID, nil
}

/*
DeliverNext is the scheduler job: it claims and delivers at most one row.

Returns:
  - *time.Time: now when a row was claimed (drain the backlog), the nearest
    pause_until when only paused rows remain, nil when the queue is empty
  - error: Storage failures
*/
func (service *Service) DeliverNext(context context.Context) (*time.Time, error) {
	now := service.now().UTC()

	claimed, err := service.repo.ClaimNext(context, now, service.processAt(now))
	if err != nil {
		return nil, err
	}
	if claimed {
		return &now, nil
	}

	return service.repo.NextPause(context, now)
}

// processAt binds the claim instant to [Service.deliver].
func (service *Service) processAt(now time.Time) ProcessFunc {
	return func(context context.Context, mail *OutgoingMail) Update {
		return service.deliver(context, mail, now)
	}
}

// deliver sends one claimed row and computes its transition.
func (service *Service) deliver(context context.Context, mail *OutgoingMail, now time.Time) Update {
	logger := service.logger.With(
		slog.String("mail_id", mail.ID),
		slog.Int("retry_count", mail.RetryCount),
	)

	err := service.transport.Send(context, service.message(mail))
	if err == nil {
		logger.InfoContext(context, "mail_delivered")
		return Update{Status: StatusDelivered, RetryCount: mail.RetryCount}
	}

	reason := err.Error()
	if mail.RetryCount >= service.config.MaxRetries {
		logger.ErrorContext(context, "mail_delivery_failed_permanently", slog.String("error", reason))
		return Update{Status: StatusFailed, RetryCount: mail.RetryCount, LastError: &reason}
	}

	pauseUntil := now.Add(service.config.RetryBackoff)
	logger.WarnContext(context, "mail_delivery_failed",
		slog.String("error", reason),
		slog.Time("pause_until", pauseUntil),
	)
	return Update{
		Status:     StatusPending,
		RetryCount: mail.RetryCount + 1,
		PauseUntil: &pauseUntil,
		LastError:  &reason,
	}
}

// message projects a row into the transport view.
func (service *Service) message(mail *OutgoingMail) Message {
	message := Message{
		From:      service.config.From,
		To:        mail.Address,
		Subject:   mail.Subject,
		HTML:      mail.Content,
		Text:      mail.ContentPlain,
		Tag:       mail.Purpose,
		MessageID: "<" + mail.ID + "@" + service.config.MessageIDHost + ">",
	}
	if mail.UserID != nil {
		message.Metadata = map[string]string{"user_id": *mail.UserID}
	}
	return message
}

// Get returns one queued row, for status reporting.
func (service *Service) Get(context context.Context, id string) (*OutgoingMail, error) {
	return service.repo.Get(context, id)
}

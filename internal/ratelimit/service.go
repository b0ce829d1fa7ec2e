// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/ctxutil"
)

// Service evaluates limiters against a [Store].
type Service struct {
	store Store
	now   func() time.Time
}

// Option customises a [Service].
type Option func(*Service)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(service *Service) { service.now = now }
}

// NewService creates a rate limit service.
func NewService(store Store, options ...Option) *Service {
	service := &Service{store: store, now: time.Now}
	for _, option := range options {
		option(service)
	}
	return service
}

/*
Bump records one hit on limiter and reports whether it stayed within the ceiling.

The hit is always recorded, including when the returned decision denies it.

Parameters:
  - context: context.Context
  - limiter: Limiter

Returns:
  - Decision: allowed / limit / remaining / reset
  - error: apperr.Internal on storage failure
*/
func (service *Service) Bump(context context.Context, limiter Limiter) (Decision, error) {
	now := service.now().UTC()

	window, err := service.store.Bump(context, limiter.Key, limiter.Period, now)
	if err != nil {
		return Decision{}, apperr.Internal(err)
	}

	decision := decide(limiter, window, now)
	if !decision.Allowed {
		ctxutil.GetLogger(context).WarnContext(context, "rate_limit_exceeded",
			slog.String("key", limiter.Key),
			slog.Int("count", window.Count),
			slog.Int("limit", limiter.Limit),
		)
	}
	return decision, nil
}

// Enforce bumps limiter and converts a denial into a RATE_LIMITED error.
func (service *Service) Enforce(context context.Context, limiter Limiter, what string) (Decision, error) {
	decision, err := service.Bump(context, limiter)
	if err != nil {
		return Decision{}, err
	}
	return decision, decision.Err(what)
}

// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ratelimit implements the persistent fixed-window rate limiter.

A limiter is a (key, limit, period) triple. Every Bump is recorded, even when
it is denied, and the counter lives in the shared store so that concurrent
requests on the same key are serialised by an atomic upsert rather than by
in-process locks.

Window semantics:

  - The first bump at or after last_reset+period restarts the window at now
    with count=1.
  - Otherwise the count increments.
  - allowed is count <= limit; remaining is max(0, limit-count).
*/
package ratelimit

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/constants"
)

// # Limiter Definitions

// Limiter names a fixed window and its ceiling.
type Limiter struct {
	Key    string
	Limit  int
	Period time.Duration
}

// For derives a limiter whose key is scoped to subject (an address, an IP).
func (l Limiter) For(subject string) Limiter {
	l.Key = l.Key + ":" + subject
	return l
}

// Built-in limiters.
var (
	// VerificationHourly caps verification emails per (address, purpose).
	VerificationHourly = Limiter{Key: "email-verification-1h", Limit: 3, Period: time.Hour}

	// VerificationDaily is the second, longer window for the same key.
	VerificationDaily = Limiter{Key: "email-verification-1d", Limit: 5, Period: 24 * time.Hour}

	// GlobalEmail caps all outgoing mail for the whole deployment.
	GlobalEmail = Limiter{Key: "global-email", Limit: 100, Period: time.Hour}

	// AuthByIP caps auth endpoint calls per client address.
	AuthByIP = Limiter{Key: "auth-ip", Limit: 60, Period: 10 * time.Minute}
)

// # Window State

// Window is the stored counter after a bump.
type Window struct {
	LastReset time.Time
	Count     int
}

// # Decision

// Decision is the outcome of a single bump.
type Decision struct {
	Allowed     bool
	Limit       int
	Remaining   int
	Reset       time.Time
	EvaluatedAt time.Time
}

// decide folds the stored window into a decision.
func decide(limiter Limiter, window Window, now time.Time) Decision {
	return Decision{
		Allowed:     window.Count <= limiter.Limit,
		Limit:       limiter.Limit,
		Remaining:   max(0, limiter.Limit-window.Count),
		Reset:       window.LastReset.Add(limiter.Period),
		EvaluatedAt: now,
	}
}

// ResetSeconds is the whole number of seconds until the window resets,
// rounded up and never negative.
func (d Decision) ResetSeconds() int {
	remaining := d.Reset.Sub(d.EvaluatedAt).Seconds()
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining))
}

// WriteHeaders sets the RateLimit-* response headers.
func (d Decision) WriteHeaders(header http.Header) {
	header.Set(constants.HeaderRateLimitLimit, strconv.Itoa(d.Limit))
	header.Set(constants.HeaderRateLimitLeft, strconv.Itoa(d.Remaining))
	header.Set(constants.HeaderRateLimitReset, strconv.Itoa(d.ResetSeconds()))
}

// Err returns nil when allowed, otherwise a RATE_LIMITED error carrying the
// reset delay. what describes the limited action for the message.
func (d Decision) Err(what string) error {
	if d.Allowed {
		return nil
	}
	seconds := d.ResetSeconds()
	return apperr.RateLimitedWithMessage(seconds,
		fmt.Sprintf("Too many %s. Try again in %s.", what, humanizeSeconds(seconds)))
}

// humanizeSeconds renders a delay the way users read it: "45 seconds", "12 minutes", "3 hours".
func humanizeSeconds(seconds int) string {
	switch {
	case seconds < 60:
		return plural(seconds, "second")
	case seconds < 3600:
		return plural(int(math.Ceil(float64(seconds)/60)), "minute")
	default:
		return plural(int(math.Ceil(float64(seconds)/3600)), "hour")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

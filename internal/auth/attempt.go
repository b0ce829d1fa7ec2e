// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth drives passwordless login and sign-up attempts.

An attempt is named by the hash of a client-held ticket and carries a small
[State] blob. Every transition is a compare-and-swap on that blob, so two
requests racing on one ticket produce a linear history: one wins and the
other gets a retryable CONCURRENT_UPDATE error.

Attempt Lifecycle:

  - Created: the ticket is known, no sub-flow started.
  - EmailSent: a login verification mail was requested.
  - EmailSolved: the mailed code was confirmed.
  - Succeeded: success_at is set and a session was minted, exactly once.

A freshly registered user skips the sub-flow through the
first_sign_up_auto_login flag.
*/
package auth

import (
	"time"

	"github.com/taibuivan/sleeporgive/internal/users"
)

// StaleAttemptAge is how long an unsuccessful attempt is kept.
const StaleAttemptAge = 24 * time.Hour

// Attempt is one login or sign-up attempt.
type Attempt struct {
	TicketHash []byte
	UserID     string
	State      State
	IPAddr     string
	StartedAt  time.Time
	SuccessAt  *time.Time
}

// IsSuccessful reports whether state authenticates user.
//
// The auto-login flag always does; otherwise a user with a primary email
// needs a mailed and solved verification.
func IsSuccessful(user *users.User, state State) bool {
	if state.FirstSignUpAutoLogin {
		return true
	}
	return user.HasPrimaryEmail() &&
		state.EmailVerificationClientTicket != "" &&
		state.EmailVerificationSolved
}

// Field names used in request bodies and validation errors.
const (
	FieldTicket            = "ticket"
	FieldEmail             = "email"
	FieldCode              = "code"
	FieldVerificationToken = "emailVerificationClientTicket"
	FieldVerificationCode  = "emailVerificationCode"
)

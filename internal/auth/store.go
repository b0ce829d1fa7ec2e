// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// Repository defines persistence for auth attempts.
//
// Conditional writes report whether a row matched instead of failing, so the
// service decides what a lost race means.
type Repository interface {
	// Start inserts the attempt, or resets an existing one with the same ticket hash.
	Start(context context.Context, attempt *Attempt) error

	// Get loads an attempt, apperr.NotFound when absent.
	Get(context context.Context, ticketHash []byte) (*Attempt, error)

	// UpdateState replaces the state only if it still equals expected.
	UpdateState(context context.Context, ticketHash []byte, expected, next State) (bool, error)

	// Complete sets success_at only if the state equals expected and no success was recorded.
	Complete(context context.Context, ticketHash []byte, expected State, at time.Time) (bool, error)

	// DeleteStaleBefore removes unsuccessful attempts started before cutoff.
	DeleteStaleBefore(context context.Context, cutoff time.Time) (int64, error)
}

// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package verification

import (
	"context"
	"time"
)

// CheckFunc judges a record after its try count was bumped.
//
// It receives nil when no record exists. A nil result consumes (deletes) the
// record; an error is returned to the caller after the bump is committed.
type CheckFunc func(v *Verification) error

// Repository defines persistence for pending verifications.
type Repository interface {
	// Find loads a record by client ticket, apperr.NotFound when absent.
	Find(context context.Context, clientTicket string) (*Verification, error)

	// Insert stores v unless its client ticket exists; it reports whether a row was written.
	Insert(context context.Context, v *Verification) (bool, error)

	// AcquireCode assigns code unless one is already set and returns the stored record.
	AcquireCode(context context.Context, codeTicketHash []byte, code string) (*Verification, error)

	// Consume bumps the try count and applies check in one serializable transaction.
	Consume(context context.Context, clientTicket string, check CheckFunc) error

	// Delete removes a record by client ticket.
	Delete(context context.Context, clientTicket string) error

	// DeleteCreatedBefore removes every record created before cutoff.
	DeleteCreatedBefore(context context.Context, cutoff time.Time) (int64, error)
}

// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"context"
	"time"
)

// ProcessFunc decides the transition of a claimed row. It must not touch
// the database: on Postgres it runs while the row lock is held.
type ProcessFunc func(context context.Context, mail *OutgoingMail) Update

// Repository defines the queue operations.
type Repository interface {
	Insert(context context.Context, mail *OutgoingMail) error

	// ClaimNext claims one Pending row that is not paused at now, lets process
	// decide its fate and stores the result. It reports whether a row was claimed.
	ClaimNext(context context.Context, now time.Time, process ProcessFunc) (bool, error)

	// NextPause returns the earliest pause_until after now among Pending rows,
	// or nil when none is paused.
	NextPause(context context.Context, now time.Time) (*time.Time, error)

	Get(context context.Context, id string) (*OutgoingMail, error)
}

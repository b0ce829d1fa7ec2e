// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"time"
)

// Store persists fixed-window counters.
//
// Bump must be a single atomic operation on the backing store: reset the
// window when last_reset <= now-period, otherwise increment, creating the
// counter with count=1 when absent.
type Store interface {
	Bump(context context.Context, key string, period time.Duration, now time.Time) (Window, error)
}

// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultHousekeepingInterval is the pause between two housekeeping runs.
const DefaultHousekeepingInterval = 15 * time.Minute

// Prune deletes expired rows of one kind and reports how many went.
type Prune struct {
	Name string
	Run  func(context context.Context) (int64, error)
}

/*
Housekeeping returns a [Handler] that runs every prune in turn and asks to
run again one interval after now. A nil now means the wall clock.

A failing prune does not stop the others; their errors are joined.
*/
func Housekeeping(logger *slog.Logger, interval time.Duration, now func() time.Time, prunes ...Prune) Handler {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if now == nil {
		now = time.Now
	}

	return func(context context.Context) (*time.Time, error) {
		var errs []error
		for _, prune := range prunes {
			deleted, err := prune.Run(context)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", prune.Name, err))
				continue
			}
			if deleted > 0 {
				logger.InfoContext(context, "housekeeping_pruned",
					slog.String("kind", prune.Name),
					slog.Int64("deleted", deleted),
				)
			}
		}

		next := now().Add(interval)
		return &next, errors.Join(errs...)
	}
}

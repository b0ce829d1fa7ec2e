// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package jobs runs the process-wide background scheduling loop.

A [Scheduler] owns a fixed list of idempotent jobs. Every cycle runs all of
them concurrently; each returns an optional "next wake" hint and the loop
sleeps until the earliest one, or until another component calls
[Scheduler.TriggerImmediate] or [Scheduler.TriggerLater].

Cycle Policy:

  - Hints fold into the next wake time; the earliest wins.
  - A cycle with a failing job grants a small budget of quick re-runs.
  - With no hint and no budget the loop sleeps until woken.

The loop is started once by the composition root and never shared.
*/
package jobs

import (
	"context"
	"time"
)

// Handler claims and processes the next unit of work.
//
// It returns the time it wants to run again (nil for "only when woken").
type Handler func(context context.Context) (*time.Time, error)

// Job is a named [Handler].
type Job struct {
	Name string
	Run  Handler
}

// CycleReport summarises one pass over all jobs.
type CycleReport struct {
	StartedAt time.Time
	Failed    []string
}

// Errored reports whether any job failed during the cycle.
func (report CycleReport) Errored() bool {
	return len(report.Failed) > 0
}

// # Options

const (
	defaultImmediateDelay = time.Second
	defaultRestartBackoff = time.Second
	defaultErrorBudget    = 2
)

// Option customises a [Scheduler].
type Option func(*Scheduler)

// WithImmediateDelay sets the pause between quick re-runs after a failed cycle.
func WithImmediateDelay(delay time.Duration) Option {
	return func(scheduler *Scheduler) { scheduler.immediateDelay = delay }
}

// WithRestartBackoff sets the wait before a crashed loop is restarted.
func WithRestartBackoff(backoff time.Duration) Option {
	return func(scheduler *Scheduler) { scheduler.restartBackoff = backoff }
}

// WithCycleHook registers a callback invoked after every cycle.
func WithCycleHook(hook func(CycleReport)) Option {
	return func(scheduler *Scheduler) { scheduler.onCycle = hook }
}

// WithClock replaces the wall clock used for wake computations.
func WithClock(now func() time.Time) Option {
	return func(scheduler *Scheduler) { scheduler.now = now }
}

// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Scheduler is the single background loop of the process.
type Scheduler struct {
	jobs   []Job
	logger *slog.Logger
	now    func() time.Time

	immediateDelay time.Duration
	restartBackoff time.Duration
	onCycle        func(CycleReport)

	mu        sync.Mutex
	nextWake  *time.Time
	immediate int

	// wake holds at most one pending notification, so a trigger that
	// arrives while the loop is busy is seen by the next wait.
	wake chan struct{}
}

// New creates a scheduler for jobs. It does nothing until [Scheduler.Run].
func New(logger *slog.Logger, jobs []Job, options ...Option) *Scheduler {
	scheduler := &Scheduler{
		jobs:           jobs,
		logger:         logger,
		now:            time.Now,
		immediateDelay: defaultImmediateDelay,
		restartBackoff: defaultRestartBackoff,
		wake:           make(chan struct{}, 1),
	}
	for _, option := range options {
		option(scheduler)
	}
	return scheduler
}

// # Wake API

// TriggerImmediate asks for a cycle as soon as possible.
func (scheduler *Scheduler) TriggerImmediate() {
	now := scheduler.now()

	scheduler.mu.Lock()
	scheduler.nextWake = &now
	scheduler.mu.Unlock()

	scheduler.notify()
}

// TriggerLater asks for a cycle no later than at. It never postpones an
// earlier wake.
func (scheduler *Scheduler) TriggerLater(at time.Time) {
	scheduler.mu.Lock()
	scheduler.foldLocked(&at)
	scheduler.mu.Unlock()

	scheduler.notify()
}

// NextWake returns the currently planned wake time, nil when idle.
func (scheduler *Scheduler) NextWake() *time.Time {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()

	if scheduler.nextWake == nil {
		return nil
	}
	next := *scheduler.nextWake
	return &next
}

func (scheduler *Scheduler) notify() {
	select {
	case scheduler.wake <- struct{}{}:
	default:
	}
}

func (scheduler *Scheduler) foldLocked(hint *time.Time) {
	if hint == nil {
		return
	}
	if scheduler.nextWake == nil || hint.Before(*scheduler.nextWake) {
		next := *hint
		scheduler.nextWake = &next
	}
}

// # Loop

/*
Run drives the loop until context is cancelled.

A crash inside the loop body is logged and the loop is restarted after the
restart backoff; Run itself only returns on cancellation.
*/
func (scheduler *Scheduler) Run(context context.Context) {
	scheduler.logger.InfoContext(context, "scheduler_started", slog.Int("jobs", len(scheduler.jobs)))

	for {
		err := scheduler.loop(context)
		if context.Err() != nil {
			scheduler.logger.InfoContext(context, "scheduler_stopped")
			return
		}

		scheduler.logger.ErrorContext(context, "scheduler_loop_crashed",
			slog.String("error", err.Error()),
			slog.Duration("restart_in", scheduler.restartBackoff),
		)

		select {
		case <-time.After(scheduler.restartBackoff):
		case <-context.Done():
			scheduler.logger.InfoContext(context, "scheduler_stopped")
			return
		}
	}
}

func (scheduler *Scheduler) loop(context context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("scheduler: loop panicked: %v", recovered)
		}
	}()

	for {
		report := scheduler.cycle(context)
		if scheduler.onCycle != nil {
			scheduler.onCycle(report)
		}

		if err := scheduler.sleep(context); err != nil {
			return err
		}
	}
}

// cycle runs every job once, concurrently, and folds their hints.
func (scheduler *Scheduler) cycle(context context.Context) CycleReport {
	report := CycleReport{StartedAt: scheduler.now()}

	scheduler.mu.Lock()
	scheduler.nextWake = nil
	scheduler.mu.Unlock()

	type outcome struct {
		hint *time.Time
		err  error
	}
	outcomes := make([]outcome, len(scheduler.jobs))

	var wg sync.WaitGroup
	for i, job := range scheduler.jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hint, err := scheduler.runJob(context, job)
			outcomes[i] = outcome{hint: hint, err: err}
		}()
	}
	wg.Wait()

	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()

	for i, result := range outcomes {
		if result.err != nil {
			report.Failed = append(report.Failed, scheduler.jobs[i].Name)
			scheduler.logger.ErrorContext(context, "scheduler_job_failed",
				slog.String("job", scheduler.jobs[i].Name),
				slog.String("error", result.err.Error()),
			)
			continue
		}
		scheduler.foldLocked(result.hint)
	}

	if report.Errored() && scheduler.immediate < defaultErrorBudget {
		scheduler.immediate = defaultErrorBudget
	}
	return report
}

// runJob isolates a job so a panic is reported as that job's failure.
func (scheduler *Scheduler) runJob(context context.Context, job Job) (hint *time.Time, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			stack := make([]byte, 2048)
			length := runtime.Stack(stack, false)
			scheduler.logger.ErrorContext(context, "scheduler_job_panicked",
				slog.String("job", job.Name),
				slog.String("stack", string(stack[:length])),
			)
			hint, err = nil, fmt.Errorf("job %s panicked: %v", job.Name, recovered)
		}
	}()

	return job.Run(context)
}

// sleep blocks until the next cycle is due. A trigger re-evaluates the due
// time rather than forcing a cycle, so TriggerLater never runs jobs early.
func (scheduler *Scheduler) sleep(context context.Context) error {

	// 1. Spend one unit of the quick re-run budget, if any.
	var quick *time.Time
	scheduler.mu.Lock()
	if scheduler.immediate > 0 {
		scheduler.immediate--
		at := scheduler.now().Add(scheduler.immediateDelay)
		quick = &at
	}
	scheduler.mu.Unlock()

	for {
		// 2. A pending notification is reflected in the state read below.
		select {
		case <-scheduler.wake:
		default:
		}

		scheduler.mu.Lock()
		due := earliest(quick, scheduler.nextWake)
		scheduler.mu.Unlock()

		// 3. No due time means sleep until woken.
		var timer *time.Timer
		var fire <-chan time.Time
		if due != nil {
			delay := due.Sub(scheduler.now())
			if delay <= 0 {
				return nil
			}
			timer = time.NewTimer(delay)
			fire = timer.C
		}

		select {
		case <-fire:
			return nil
		case <-scheduler.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-context.Done():
			if timer != nil {
				timer.Stop()
			}
			return context.Err()
		}
	}
}

func earliest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	default:
		return a
	}
}

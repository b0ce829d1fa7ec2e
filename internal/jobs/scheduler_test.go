// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package jobs_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sleeporgive/internal/jobs"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// start runs the scheduler in the background and stops it at test cleanup.
func start(t *testing.T, scheduler *jobs.Scheduler) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		scheduler.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(waitFor):
			t.Error("scheduler did not stop after cancellation")
		}
	})
}

func counting(counter *atomic.Int32, hint func() *time.Time, err error) jobs.Handler {
	return func(context.Context) (*time.Time, error) {
		counter.Add(1)
		if hint != nil {
			return hint(), err
		}
		return nil, err
	}
}

/*
TestScheduler_FailingJobDoesNotStopOthers keeps a broken job alongside a healthy one.
*/
func TestScheduler_FailingJobDoesNotStopOthers(t *testing.T) {
	var broken, healthy, cycles atomic.Int32

	scheduler := jobs.New(discardLogger(), []jobs.Job{
		{Name: "broken", Run: counting(&broken, nil, errors.New("database is on fire"))},
		{Name: "healthy", Run: counting(&healthy, nil, nil)},
	},
		jobs.WithImmediateDelay(tick),
		jobs.WithCycleHook(func(report jobs.CycleReport) {
			assert.Equal(t, []string{"broken"}, report.Failed)
			cycles.Add(1)
		}),
	)
	start(t, scheduler)

	// Every errored cycle re-arms the quick re-run budget, so the loop keeps going.
	require.Eventually(t, func() bool { return cycles.Load() >= 6 }, waitFor, tick)
	assert.GreaterOrEqual(t, healthy.Load(), int32(6))
	assert.GreaterOrEqual(t, broken.Load(), int32(6))
}

/*
TestScheduler_PanickingJob reports a panic as that job's failure only.
*/
func TestScheduler_PanickingJob(t *testing.T) {
	var healthy, cycles atomic.Int32

	scheduler := jobs.New(discardLogger(), []jobs.Job{
		{Name: "panicky", Run: func(context.Context) (*time.Time, error) { panic("boom") }},
		{Name: "healthy", Run: counting(&healthy, nil, nil)},
	},
		jobs.WithImmediateDelay(tick),
		jobs.WithCycleHook(func(jobs.CycleReport) { cycles.Add(1) }),
	)
	start(t, scheduler)

	require.Eventually(t, func() bool { return cycles.Load() >= 3 }, waitFor, tick)
	assert.GreaterOrEqual(t, healthy.Load(), int32(3))
}

/*
TestScheduler_IdleUntilTriggered checks that a quiet loop sleeps until woken.
*/
func TestScheduler_IdleUntilTriggered(t *testing.T) {
	var runs atomic.Int32

	scheduler := jobs.New(discardLogger(), []jobs.Job{
		{Name: "quiet", Run: counting(&runs, nil, nil)},
	})
	start(t, scheduler)

	require.Eventually(t, func() bool { return runs.Load() == 1 }, waitFor, tick)

	// 1. No hint and no error: the loop must not spin.
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, runs.Load())

	// 2. An external trigger runs one more cycle.
	scheduler.TriggerImmediate()
	require.Eventually(t, func() bool { return runs.Load() == 2 }, waitFor, tick)
}

/*
TestScheduler_HintSchedulesNextCycle honours a job's own wake hint.
*/
func TestScheduler_HintSchedulesNextCycle(t *testing.T) {
	var runs atomic.Int32

	hint := func() *time.Time {
		if runs.Load() > 1 {
			return nil
		}
		at := time.Now().Add(20 * time.Millisecond)
		return &at
	}

	scheduler := jobs.New(discardLogger(), []jobs.Job{
		{Name: "hinted", Run: counting(&runs, hint, nil)},
	})
	start(t, scheduler)

	require.Eventually(t, func() bool { return runs.Load() == 2 }, waitFor, tick)

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 2, runs.Load())
}

/*
TestScheduler_TriggerLaterOnlyMovesEarlier verifies the earliest-wins rule.
*/
func TestScheduler_TriggerLaterOnlyMovesEarlier(t *testing.T) {
	base := time.Date(2026, 2, 1, 7, 0, 0, 0, time.UTC)
	scheduler := jobs.New(discardLogger(), nil, jobs.WithClock(func() time.Time { return base }))

	assert.Nil(t, scheduler.NextWake())

	scheduler.TriggerLater(base.Add(10 * time.Minute))
	scheduler.TriggerLater(base.Add(time.Hour))
	require.NotNil(t, scheduler.NextWake())
	assert.Equal(t, base.Add(10*time.Minute), *scheduler.NextWake())

	scheduler.TriggerLater(base.Add(time.Minute))
	assert.Equal(t, base.Add(time.Minute), *scheduler.NextWake())

	scheduler.TriggerImmediate()
	assert.Equal(t, base, *scheduler.NextWake())
}

/*
TestScheduler_TriggerLaterDoesNotRunEarly wakes the loop without forcing a cycle.
*/
func TestScheduler_TriggerLaterDoesNotRunEarly(t *testing.T) {
	var runs atomic.Int32

	scheduler := jobs.New(discardLogger(), []jobs.Job{
		{Name: "quiet", Run: counting(&runs, nil, nil)},
	})
	start(t, scheduler)

	require.Eventually(t, func() bool { return runs.Load() == 1 }, waitFor, tick)

	scheduler.TriggerLater(time.Now().Add(time.Hour))
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, runs.Load())

	scheduler.TriggerLater(time.Now().Add(10 * time.Millisecond))
	require.Eventually(t, func() bool { return runs.Load() == 2 }, waitFor, tick)
}

/*
TestScheduler_RestartsAfterLoopCrash checks that Run survives a crash of the loop itself.
*/
func TestScheduler_RestartsAfterLoopCrash(t *testing.T) {
	var cycles atomic.Int32

	scheduler := jobs.New(discardLogger(), []jobs.Job{
		{Name: "quiet", Run: func(context.Context) (*time.Time, error) { return nil, nil }},
	},
		jobs.WithRestartBackoff(tick),
		jobs.WithCycleHook(func(jobs.CycleReport) {
			if cycles.Add(1) == 1 {
				panic("hook exploded")
			}
		}),
	)
	start(t, scheduler)

	// The restarted loop runs its first cycle immediately.
	require.Eventually(t, func() bool { return cycles.Load() >= 2 }, waitFor, tick)
}

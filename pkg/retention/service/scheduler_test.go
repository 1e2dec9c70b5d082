package service

import (
	"context"
	"testing"
	"time"
)

func newSchedulerEnv(t *testing.T, schedule string) *Scheduler {
	t.Helper()
	env := newTestEnv(t)
	env.service.config.Schedule = schedule
	return NewScheduler(env.service)
}

func TestSchedulerStartStop(t *testing.T) {
	scheduler := newSchedulerEnv(t, "*/15 * * * *")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !scheduler.IsRunning() {
		t.Fatal("scheduler should be running")
	}
	if scheduler.NextRun() == nil {
		t.Fatal("NextRun() = nil while running")
	}

	if err := scheduler.Start(ctx); err == nil {
		t.Fatal("second Start() should fail")
	}

	scheduler.Stop()
	if scheduler.IsRunning() {
		t.Fatal("scheduler should be stopped")
	}
	if scheduler.NextRun() != nil {
		t.Fatal("NextRun() should be nil when stopped")
	}

	// Stopping again is a no-op.
	scheduler.Stop()
}

func TestSchedulerRejectsInvalidSchedule(t *testing.T) {
	scheduler := newSchedulerEnv(t, "every other thursday")

	if err := scheduler.Start(context.Background()); err == nil {
		t.Fatal("Start() accepted an invalid cron expression")
	}
	if scheduler.IsRunning() {
		t.Fatal("scheduler should not run after a failed start")
	}
}

func TestSchedulerDisabledWithoutSchedule(t *testing.T) {
	scheduler := newSchedulerEnv(t, "")

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if scheduler.IsRunning() {
		t.Fatal("empty schedule should leave the scheduler idle")
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	scheduler := newSchedulerEnv(t, "*/15 * * * *")

	ctx, cancel := context.WithCancel(context.Background())
	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for scheduler.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not stop after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

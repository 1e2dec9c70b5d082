package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives retention runs on the service's cron schedule.
type Scheduler struct {
	service *Service
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a scheduler for the service.
func NewScheduler(service *Service) *Scheduler {
	return &Scheduler{
		service: service,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "retention.scheduler"),
	}
}

// Start begins scheduled retention runs. The schedule is a standard cron
// expression, for example "*/15 * * * *" for every fifteen minutes or
// "0 2 * * *" for daily at 2 AM. An empty schedule disables scheduled
// runs. The scheduler stops itself when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	schedule := s.service.config.Schedule
	if schedule == "" {
		s.logger.Info("run schedule not configured, scheduled runs disabled")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid run schedule %q: %w", schedule, err)
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.runDue(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule retention runs: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("retention scheduler started", "schedule", schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts scheduled runs, waiting for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("retention scheduler stopped")
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the time of the next scheduled run, or nil when the
// scheduler is idle.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

func (s *Scheduler) runDue(ctx context.Context) {
	summaries, err := s.service.RunDue(ctx)
	if err != nil {
		s.logger.Error("scheduled retention run failed", "error", err)
		return
	}

	var processed, archived, deleted int64
	for _, summary := range summaries {
		processed += summary.Processed
		archived += summary.Archived
		deleted += summary.Deleted
	}
	if len(summaries) > 0 {
		s.logger.Info("scheduled retention run completed",
			"policies", len(summaries),
			"processed", processed,
			"archived", archived,
			"deleted", deleted)
	}
}

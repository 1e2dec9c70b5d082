package service

import (
	"context"
	"time"

	"custodia-hq/amber/pkg/archive"
)

// Reconcile cleans up archives a previous process left mid-creation. A row
// still in the creating state after a restart cannot have a trustworthy
// blob, so it is marked failed and any partial blob removed. Returns the
// number of rows reconciled. Run this at startup, before the scheduler.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	stale, err := s.archives.List(ctx, archive.Filter{Status: archive.StatusCreating})
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	reconciled := 0
	for _, a := range stale {
		// A creating row younger than the lease TTL may belong to a live
		// run on another instance.
		if a.CreatedAt.After(now.Add(-s.config.LeaseTTL)) {
			continue
		}

		if err := s.archives.MarkFailed(ctx, a.ID, "interrupted before completion"); err != nil {
			s.logger.Error("reconcile mark failed", "archive_id", a.ID, "error", err)
			continue
		}
		if a.Storage.Path != "" {
			if err := s.blobs.Remove(ctx, a.Storage.Path); err != nil {
				s.logger.Warn("orphan blob removal failed",
					"archive_id", a.ID,
					"path", a.Storage.Path,
					"error", err)
			}
		}
		reconciled++
		s.logger.Warn("stale creating archive reconciled",
			"archive_id", a.ID,
			"tenant_id", a.TenantID)
	}

	if reconciled > 0 {
		s.logger.Info("startup reconcile completed", "archives", reconciled)
	}
	return reconciled, nil
}

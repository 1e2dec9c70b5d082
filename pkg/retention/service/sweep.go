package service

import (
	"context"
	"time"

	"custodia-hq/amber/pkg/archive"
	"custodia-hq/amber/pkg/bus"
	"custodia-hq/amber/pkg/retention"
)

// sweepPhase removes this policy's archives whose scheduled deletion has
// come due. Legal holds block removal. Sweep problems are logged and
// skipped; they never fail the surrounding run.
func (s *Service) sweepPhase(ctx context.Context, run *policyRun) {
	policy := run.policy

	for _, status := range []archive.Status{archive.StatusCompleted, archive.StatusVerified} {
		archives, err := s.archives.List(ctx, archive.Filter{
			RetentionPolicyID: policy.ID,
			Status:            status,
		})
		if err != nil {
			s.logger.Error("archive sweep listing failed", "policy_id", policy.ID, "error", err)
			return
		}

		for _, a := range archives {
			if !retention.DueForDeletion(a.LegalHold.IsOnHold, a.ScheduledDeletion.DeleteAfter, run.now) {
				continue
			}
			if a.ScheduledDeletion.ApprovalRequired {
				approval, err := s.consumeApproval(ctx, run)
				if err != nil {
					s.logger.Error("archive sweep approval lookup failed", "policy_id", policy.ID, "error", err)
					return
				}
				if approval == nil {
					s.logger.Warn("archive sweep skipped, no approval on file",
						"archive_id", a.ID,
						"policy_id", policy.ID)
					continue
				}
			}
			if err := s.deleteArchive(ctx, a, run.now); err != nil {
				s.metrics.RecordArchiveOperation("delete", false)
				s.logger.Error("archive deletion failed", "archive_id", a.ID, "error", err)
				continue
			}
			run.summary.SweptArchives++
		}
	}
}

// deleteArchive removes the blob first, then flips the row. Remove is
// idempotent, so a crash between the two leaves a row the next sweep can
// finish.
func (s *Service) deleteArchive(ctx context.Context, a *archive.Archive, now time.Time) error {
	if err := s.blobs.Remove(ctx, a.Storage.Path); err != nil {
		return err
	}
	if err := s.archives.UpdateStatus(ctx, a.ID, a.Status, archive.StatusDeleted); err != nil {
		return err
	}

	s.appendArchiveEvent(ctx, a.ID, now, "deleted", s.config.Actor, "scheduled deletion")
	s.chainAppend(ctx, a.TenantID, chainArchives, "archive_deleted", map[string]any{
		"archiveId": a.ID,
		"policyId":  a.RetentionPolicyID,
		"dataType":  string(a.DataType),
	})
	s.publish(ctx, a.TenantID, bus.TopicArchiveDeleted, map[string]any{
		"archiveId": a.ID,
		"policyId":  a.RetentionPolicyID,
	})
	s.metrics.RecordArchiveOperation("delete", true)
	s.logger.Info("archive deleted", "archive_id", a.ID, "policy_id", a.RetentionPolicyID)
	return nil
}

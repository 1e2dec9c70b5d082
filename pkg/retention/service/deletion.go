package service

import (
	"context"

	"custodia-hq/amber/pkg/bus"
	"custodia-hq/amber/pkg/datastore"
	"custodia-hq/amber/pkg/retention"
)

// deletePhase removes records older than the retention cutoff. Records
// already copied into an archive are still removed from live storage; the
// archive holds their copy. A hard-delete policy without a consumable
// approval is downgraded to a soft delete so the run still makes progress.
func (s *Service) deletePhase(ctx context.Context, run *policyRun) error {
	policy := run.policy

	candidates, err := run.store.QueryOlderThan(ctx, policy.TenantID, run.retentionCutoff)
	if err != nil {
		return retention.NewExecutionError(policy.ID, "delete_select", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	ids := make([]string, len(candidates))
	for i, record := range candidates {
		ids[i] = record.ID
	}

	hard := !policy.Deletion.SoftDelete
	if hard && policy.Deletion.RequireApproval {
		approval, err := s.consumeApproval(ctx, run)
		if err != nil {
			return retention.NewExecutionError(policy.ID, "approval", err)
		}
		if approval == nil {
			hard = false
			s.logger.Warn("hard delete downgraded to soft delete, no approval on file",
				"policy_id", policy.ID,
				"tenant_id", policy.TenantID)
		}
	}

	var deleted int64
	mode := "soft"
	if hard {
		mode = "hard"
		deleted, err = run.store.HardDelete(ctx, policy.TenantID, ids)
	} else {
		deleted, err = run.store.SoftDelete(ctx, policy.TenantID, ids, datastore.DeletionMark{
			DeletedAt: run.now,
			DeletedBy: s.config.Actor,
			Reason:    "retention policy " + policy.ID,
		})
	}
	if err != nil {
		return retention.NewExecutionError(policy.ID, "delete", err)
	}
	if deleted == 0 {
		return nil
	}

	run.summary.Deleted = deleted
	run.summary.Processed += deleted
	s.metrics.RecordRecordsProcessed(policy.TenantID, string(policy.DataType), "deleted", deleted)
	s.publish(ctx, policy.TenantID, bus.TopicRecordsDeleted, map[string]any{
		"policyId": policy.ID,
		"dataType": string(policy.DataType),
		"mode":     mode,
		"count":    deleted,
	})
	s.logger.Info("records deleted", "policy_id", policy.ID, "mode", mode, "count", deleted)
	return nil
}

// purgePhase removes soft-deleted records whose hard-delete window has
// passed. Purged rows were already counted as deleted when their mark was
// placed, so they never feed the processed counters again.
func (s *Service) purgePhase(ctx context.Context, run *policyRun) error {
	policy := run.policy
	if policy.Deletion.HardDeleteAfter.IsZero() {
		return nil
	}

	cutoff, err := policy.Deletion.HardDeleteAfter.CutoffFrom(run.now)
	if err != nil {
		return retention.NewExecutionError(policy.ID, "purge_cutoff", err)
	}

	if policy.Deletion.RequireApproval {
		approval, err := s.consumeApproval(ctx, run)
		if err != nil {
			return retention.NewExecutionError(policy.ID, "approval", err)
		}
		if approval == nil {
			s.logger.Warn("purge skipped, no approval on file", "policy_id", policy.ID)
			return nil
		}
	}

	purged, err := run.store.PurgeSoftDeleted(ctx, policy.TenantID, cutoff)
	if err != nil {
		return retention.NewExecutionError(policy.ID, "purge", err)
	}
	if purged == 0 {
		return nil
	}

	run.summary.Purged = purged
	s.metrics.RecordRecordsProcessed(policy.TenantID, string(policy.DataType), "purged", purged)
	s.logger.Info("soft-deleted records purged", "policy_id", policy.ID, "count", purged)
	return nil
}

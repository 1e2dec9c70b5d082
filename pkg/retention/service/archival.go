package service

import (
	"context"
	"time"

	"custodia-hq/amber/pkg/archive"
	"custodia-hq/amber/pkg/bus"
	"custodia-hq/amber/pkg/retention"
)

// archivePhase packs records inside the archive window into a new archive
// and marks them archived in live storage. The window runs from the
// retention cutoff (older records are deletion candidates, not archival
// ones) up to the archive-after cutoff.
func (s *Service) archivePhase(ctx context.Context, run *policyRun) error {
	policy := run.policy

	archiveCutoff, err := policy.Archival.ArchiveAfter.CutoffFrom(run.now)
	if err != nil {
		return retention.NewExecutionError(policy.ID, "archive_cutoff", err)
	}

	records, err := run.store.QueryBetween(ctx, policy.TenantID, run.retentionCutoff, archiveCutoff)
	if err != nil {
		return retention.NewExecutionError(policy.ID, "archive_select", err)
	}
	if len(records) == 0 {
		return nil
	}

	location := policy.Archival.Location
	if location == "" {
		location = s.config.Location
	}

	req := archive.CreateRequest{
		TenantID:          policy.TenantID,
		DataType:          policy.DataType,
		RetentionPolicyID: policy.ID,
		SourceCollection:  run.store.Collection(),
		Location:          location,
		Records:           records,
		Compression: archive.CompressionSettings{
			Enabled:   policy.Archival.Compression.Enabled,
			Algorithm: policy.Archival.Compression.Algorithm,
		},
		Encryption: archive.EncryptionSettings{
			Enabled:   policy.Archival.Encryption.Enabled,
			Algorithm: policy.Archival.Encryption.Algorithm,
		},
		ScheduledDeletion: s.archiveDeletion(policy, run.now),
		Actor:             s.config.Actor,
	}

	created, err := s.pipeline.Run(ctx, req)
	s.metrics.RecordArchiveOperation("create", err == nil)
	if err != nil {
		return retention.NewExecutionError(policy.ID, "archive", err)
	}

	ids := make([]string, len(records))
	for i, record := range records {
		ids[i] = record.ID
	}
	archivedAt := created.CreatedAt
	if created.CompletedAt != nil {
		archivedAt = *created.CompletedAt
	}
	marked, err := run.store.MarkArchived(ctx, policy.TenantID, ids, created.ID, archivedAt)
	if err != nil {
		return retention.NewExecutionError(policy.ID, "archive_mark", err)
	}

	run.summary.Archived = int64(len(records))
	run.summary.Processed += int64(len(records))
	s.metrics.RecordRecordsProcessed(policy.TenantID, string(policy.DataType), "archived", int64(len(records)))
	s.metrics.RecordArchiveBytes(string(policy.DataType), "original", created.FileInfo.OriginalSize)
	s.metrics.RecordArchiveBytes(string(policy.DataType), "stored", created.FileInfo.CompressedSize)

	s.publish(ctx, policy.TenantID, bus.TopicArchiveCreated, map[string]any{
		"archiveId":   created.ID,
		"policyId":    policy.ID,
		"dataType":    string(policy.DataType),
		"recordCount": created.RecordCount,
	})
	s.logger.Info("archive created",
		"archive_id", created.ID,
		"policy_id", policy.ID,
		"record_count", created.RecordCount,
		"marked", marked)
	return nil
}

// archiveDeletion derives the archive's own deletion schedule from the
// policy's hard-delete settings.
func (s *Service) archiveDeletion(policy *retention.RetentionPolicy, now time.Time) archive.ScheduledDeletion {
	sched := archive.ScheduledDeletion{ApprovalRequired: policy.Deletion.RequireApproval}
	if policy.Deletion.HardDeleteAfter.IsZero() {
		return sched
	}
	deleteAfter, err := policy.Deletion.HardDeleteAfter.AddTo(now)
	if err != nil {
		return sched
	}
	sched.DeleteAfter = &deleteAfter
	return sched
}

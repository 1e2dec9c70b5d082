package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"custodia-hq/amber/pkg/archive"
	"custodia-hq/amber/pkg/bus"
)

// GetArchive returns an archive by ID.
func (s *Service) GetArchive(ctx context.Context, archiveID string) (*archive.Archive, error) {
	return s.archives.Get(ctx, archiveID)
}

// ListArchives returns archives matching the filter, oldest first.
func (s *Service) ListArchives(ctx context.Context, filter archive.Filter) ([]*archive.Archive, error) {
	return s.archives.List(ctx, filter)
}

// RestoreArchive copies an archive's records back into live storage and
// reports per-record results.
func (s *Service) RestoreArchive(ctx context.Context, archiveID, requestedBy string) (*archive.RestoreResult, error) {
	ctx, span := tracer.Start(ctx, "retention.restore_archive", trace.WithAttributes(
		attribute.String("archive.id", archiveID),
	))
	defer span.End()

	a, err := s.archives.Get(ctx, archiveID)
	if err != nil {
		return nil, err
	}

	result, err := s.restorer.Restore(ctx, archiveID, requestedBy)
	s.metrics.RecordArchiveOperation("restore", err == nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	event := map[string]any{
		"archiveId":       archiveID,
		"requestedBy":     requestedBy,
		"recordsRestored": result.RecordsRestored,
		"totalRecords":    result.TotalRecords,
		"status":          result.Status,
	}
	s.chainAppend(ctx, a.TenantID, chainArchives, "archive_restored", event)
	s.publish(ctx, a.TenantID, bus.TopicArchiveRestored, event)
	s.logger.Info("archive restored",
		"archive_id", archiveID,
		"requested_by", requestedBy,
		"records_restored", result.RecordsRestored,
		"total_records", result.TotalRecords,
		"status", result.Status)
	return result, nil
}

// VerifyArchive recomputes an archive's checksum and reports whether the
// blob still matches. A corruption finding is chained either way; only
// errors that prevented reaching a verdict go unchained.
func (s *Service) VerifyArchive(ctx context.Context, archiveID, actor string) (bool, error) {
	a, err := s.archives.Get(ctx, archiveID)
	if err != nil {
		return false, err
	}

	valid, err := s.verifier.Verify(ctx, archiveID, actor)

	var integrityErr *archive.IntegrityError
	verdictReached := err == nil || errors.As(err, &integrityErr)
	s.metrics.RecordArchiveOperation("verify", verdictReached)
	if verdictReached {
		result := "verified"
		if !valid {
			result = "corrupted"
		}
		s.chainAppend(ctx, a.TenantID, chainArchives, "archive_verified", map[string]any{
			"archiveId": archiveID,
			"result":    result,
			"actor":     actor,
		})
	}
	return valid, err
}

// PlaceHold puts an archive on legal hold, blocking its scheduled
// deletion until the hold is released.
func (s *Service) PlaceHold(ctx context.Context, archiveID, reason, placedBy string) error {
	a, err := s.archives.Get(ctx, archiveID)
	if err != nil {
		return err
	}
	if a.LegalHold.IsOnHold {
		return fmt.Errorf("archive %s is already on legal hold", archiveID)
	}

	now := time.Now().UTC()
	hold := archive.LegalHold{
		IsOnHold: true,
		Reason:   reason,
		PlacedBy: placedBy,
		PlacedAt: &now,
	}
	if err := s.archives.SetLegalHold(ctx, archiveID, hold); err != nil {
		return err
	}

	s.appendArchiveEvent(ctx, archiveID, now, "hold_placed", placedBy, reason)
	s.appendAccessEvent(ctx, archiveID, now, archive.AccessHold, placedBy)
	s.chainAppend(ctx, a.TenantID, chainArchives, "legal_hold_placed", map[string]any{
		"archiveId": archiveID,
		"reason":    reason,
		"placedBy":  placedBy,
	})
	s.logger.Info("legal hold placed", "archive_id", archiveID, "placed_by", placedBy, "reason", reason)
	return nil
}

// ReleaseHold lifts an archive's legal hold. The hold's provenance is kept
// alongside the release time.
func (s *Service) ReleaseHold(ctx context.Context, archiveID, releasedBy string) error {
	a, err := s.archives.Get(ctx, archiveID)
	if err != nil {
		return err
	}
	if !a.LegalHold.IsOnHold {
		return fmt.Errorf("archive %s is not on legal hold", archiveID)
	}

	now := time.Now().UTC()
	hold := a.LegalHold
	hold.IsOnHold = false
	hold.ReleasedAt = &now
	if err := s.archives.SetLegalHold(ctx, archiveID, hold); err != nil {
		return err
	}

	s.appendArchiveEvent(ctx, archiveID, now, "hold_released", releasedBy, "")
	s.appendAccessEvent(ctx, archiveID, now, archive.AccessRelease, releasedBy)
	s.chainAppend(ctx, a.TenantID, chainArchives, "legal_hold_released", map[string]any{
		"archiveId":  archiveID,
		"releasedBy": releasedBy,
	})
	s.logger.Info("legal hold released", "archive_id", archiveID, "released_by", releasedBy)
	return nil
}

func (s *Service) appendArchiveEvent(ctx context.Context, archiveID string, at time.Time, event, actor, details string) {
	err := s.archives.AppendAuditEvent(ctx, archive.AuditEvent{
		ArchiveID: archiveID,
		Timestamp: at,
		Event:     event,
		Actor:     actor,
		Details:   details,
	})
	if err != nil {
		s.logger.Warn("archive audit append failed", "archive_id", archiveID, "event", event, "error", err)
	}
}

func (s *Service) appendAccessEvent(ctx context.Context, archiveID string, at time.Time, accessType archive.AccessType, actor string) {
	err := s.archives.AppendAccessEvent(ctx, archive.AccessEvent{
		ArchiveID: archiveID,
		Timestamp: at,
		Type:      accessType,
		Actor:     actor,
	})
	if err != nil {
		s.logger.Warn("archive access log append failed", "archive_id", archiveID, "type", accessType, "error", err)
	}
}

package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// Verifier re-checks stored blobs against their creation-time checksums.
type Verifier struct {
	archives Store
	blobs    BlobStore
	logger   *slog.Logger
}

// NewVerifier creates a verifier.
func NewVerifier(archives Store, blobs BlobStore) (*Verifier, error) {
	if archives == nil {
		return nil, fmt.Errorf("archive store is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}

	return &Verifier{
		archives: archives,
		blobs:    blobs,
		logger:   slog.Default().With("component", "archive.verifier"),
	}, nil
}

// Verify recomputes the blob checksum and transitions the archive to
// verified or corrupted. It returns false with an IntegrityError on
// mismatch, and an access-log row records the check either way.
func (v *Verifier) Verify(ctx context.Context, archiveID, actor string) (bool, error) {
	a, err := v.archives.Get(ctx, archiveID)
	if err != nil {
		return false, err
	}

	switch a.Status {
	case StatusCompleted, StatusVerified, StatusCorrupted:
		// Verifiable states. Re-verifying a corrupted archive can detect
		// a blob restored from backup.
	default:
		return false, NewStateError(archiveID, a.Status, "verify")
	}

	if err := v.archives.UpdateStatus(ctx, archiveID, a.Status, StatusVerifying); err != nil {
		return false, err
	}

	data, err := v.blobs.Read(ctx, a.Storage.Path)
	if err != nil {
		// Missing blob is corruption from the consumer's point of view.
		v.finish(ctx, a, actor, StatusCorrupted)
		return false, NewIntegrityError(archiveID, a.FileInfo.Checksum, "")
	}

	sum := sha256.Sum256(data)
	actual := hex.EncodeToString(sum[:])

	if actual != a.FileInfo.Checksum {
		v.finish(ctx, a, actor, StatusCorrupted)
		return false, NewIntegrityError(archiveID, a.FileInfo.Checksum, actual)
	}

	v.finish(ctx, a, actor, StatusVerified)

	v.logger.Info("archive verified",
		"archive_id", archiveID,
		"tenant_id", a.TenantID,
	)
	return true, nil
}

// finish transitions out of verifying and appends log rows.
func (v *Verifier) finish(ctx context.Context, a *Archive, actor string, to Status) {
	if err := v.archives.UpdateStatus(ctx, a.ID, StatusVerifying, to); err != nil {
		v.logger.Error("failed to finish verification", "archive_id", a.ID, "error", err)
	}

	now := time.Now().UTC()
	event := "verified"
	if to == StatusCorrupted {
		event = "corruption_detected"
		v.logger.Error("archive corrupted",
			"archive_id", a.ID,
			"tenant_id", a.TenantID,
			"path", a.Storage.Path,
		)
	}

	_ = v.archives.AppendAuditEvent(ctx, AuditEvent{
		ArchiveID: a.ID,
		Timestamp: now,
		Event:     event,
		Actor:     actor,
	})
	_ = v.archives.AppendAccessEvent(ctx, AccessEvent{
		ArchiveID: a.ID,
		Timestamp: now,
		Type:      AccessVerify,
		Actor:     actor,
	})
}

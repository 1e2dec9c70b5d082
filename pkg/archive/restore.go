package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"custodia-hq/amber/pkg/datastore"
	"custodia-hq/amber/pkg/security/keys"
)

// RestoreFailure identifies one record that could not be restored.
type RestoreFailure struct {
	RecordID string `json:"recordId"`
	Err      string `json:"error"`
}

// RestoreResult reports the outcome of a restore run.
type RestoreResult struct {
	ArchiveID       string `json:"archiveId"`
	TotalRecords    int64  `json:"totalRecords"`
	RecordsRestored int64  `json:"recordsRestored"`

	// Status is "success" when every record was restored, "partial"
	// otherwise.
	Status string `json:"status"`

	Failed []RestoreFailure `json:"failed,omitempty"`
}

// Restorer reads archives back into their hot stores.
type Restorer struct {
	archives Store
	blobs    BlobStore
	keyring  *keys.Keyring
	registry datastore.Registry
	logger   *slog.Logger
}

// NewRestorer creates a restorer.
func NewRestorer(archives Store, blobs BlobStore, keyring *keys.Keyring, registry datastore.Registry) (*Restorer, error) {
	if archives == nil {
		return nil, fmt.Errorf("archive store is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("datastore registry is required")
	}

	return &Restorer{
		archives: archives,
		blobs:    blobs,
		keyring:  keyring,
		registry: registry,
		logger:   slog.Default().With("component", "archive.restorer"),
	}, nil
}

// Restore reads the archive's blob, verifies its checksum, unpacks the
// envelope, and inserts each record back into the hot store for the
// archive's data type.
//
// Restored records get fresh identities and no deletion mark, but carry
// the source archive's ID so the next policy run does not re-archive them.
// Per-record insert failures are collected rather than aborting the run;
// only a total failure returns an error.
func (r *Restorer) Restore(ctx context.Context, archiveID, requestedBy string) (*RestoreResult, error) {
	a, err := r.archives.Get(ctx, archiveID)
	if err != nil {
		return nil, err
	}
	if !a.Restorable {
		return nil, NewRestoreError(archiveID, "archive is not restorable")
	}
	if !restorableStatuses[a.Status] {
		return nil, NewStateError(archiveID, a.Status, "restore")
	}

	env, err := r.unpack(ctx, a)
	if err != nil {
		return nil, err
	}

	store, err := r.registry.Store(a.DataType)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{
		ArchiveID:    a.ID,
		TotalRecords: int64(len(env.Records)),
	}

	archivedAt := a.CreatedAt
	if a.CompletedAt != nil {
		archivedAt = *a.CompletedAt
	}

	for _, rec := range env.Records {
		restored := *rec
		restored.ID = ""
		restored.Deletion = nil
		restored.ArchivedAt = &archivedAt
		restored.ArchiveID = a.ID

		if err := store.Insert(ctx, &restored); err != nil {
			result.Failed = append(result.Failed, RestoreFailure{
				RecordID: rec.ID,
				Err:      err.Error(),
			})
			continue
		}
		result.RecordsRestored++
	}

	if result.RecordsRestored == 0 && result.TotalRecords > 0 {
		r.record(ctx, a, requestedBy, result, "failed")
		return nil, NewRestoreError(archiveID,
			fmt.Sprintf("all %d records failed to restore", result.TotalRecords))
	}

	result.Status = "success"
	if result.RecordsRestored < result.TotalRecords {
		result.Status = "partial"
	}

	r.record(ctx, a, requestedBy, result, result.Status)

	r.logger.Info("archive restored",
		"archive_id", a.ID,
		"tenant_id", a.TenantID,
		"restored", result.RecordsRestored,
		"total", result.TotalRecords,
		"status", result.Status,
	)

	return result, nil
}

// unpack loads the blob, verifies integrity, and decodes the envelope.
func (r *Restorer) unpack(ctx context.Context, a *Archive) (*Envelope, error) {
	data, err := r.blobs.Read(ctx, a.Storage.Path)
	if err != nil {
		return nil, NewRestoreError(a.ID, fmt.Sprintf("blob read failed: %v", err))
	}

	sum := sha256.Sum256(data)
	actual := hex.EncodeToString(sum[:])
	if actual != a.FileInfo.Checksum {
		if err := r.archives.UpdateStatus(ctx, a.ID, a.Status, StatusCorrupted); err != nil {
			r.logger.Error("failed to mark archive corrupted", "archive_id", a.ID, "error", err)
		}
		return nil, NewIntegrityError(a.ID, a.FileInfo.Checksum, actual)
	}

	if a.Encryption.Enabled {
		if r.keyring == nil {
			return nil, NewRestoreError(a.ID, "archive is encrypted but no keyring configured")
		}
		key, err := r.keyring.Resolve(ctx, a.Encryption.KeyID)
		if err != nil {
			return nil, NewRestoreError(a.ID, fmt.Sprintf("data key unavailable: %v", err))
		}
		data, err = keys.Open(key, data)
		if err != nil {
			return nil, NewRestoreError(a.ID, fmt.Sprintf("decryption failed: %v", err))
		}
	}

	if a.FileInfo.Algorithm == AlgorithmGzip {
		data, err = Decompress(data)
		if err != nil {
			return nil, NewRestoreError(a.ID, fmt.Sprintf("decompression failed: %v", err))
		}
	}

	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, NewRestoreError(a.ID, fmt.Sprintf("envelope decode failed: %v", err))
	}
	return env, nil
}

// record appends the restoration row, audit-trail row, and access-log row.
func (r *Restorer) record(ctx context.Context, a *Archive, requestedBy string, result *RestoreResult, status string) {
	now := time.Now().UTC()

	if err := r.archives.AppendRestoration(ctx, Restoration{
		ArchiveID:       a.ID,
		RequestedBy:     requestedBy,
		RequestedAt:     now,
		RecordsRestored: result.RecordsRestored,
		TotalRecords:    result.TotalRecords,
		Status:          status,
	}); err != nil {
		r.logger.Error("failed to append restoration", "archive_id", a.ID, "error", err)
	}

	_ = r.archives.AppendAuditEvent(ctx, AuditEvent{
		ArchiveID: a.ID,
		Timestamp: now,
		Event:     "restored",
		Actor:     requestedBy,
		Details:   fmt.Sprintf("%d/%d records", result.RecordsRestored, result.TotalRecords),
	})
	_ = r.archives.AppendAccessEvent(ctx, AccessEvent{
		ArchiveID: a.ID,
		Timestamp: now,
		Type:      AccessRestore,
		Actor:     requestedBy,
	})
}

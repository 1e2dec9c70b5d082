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

// CompressionSettings selects blob compression for a pipeline run.
type CompressionSettings struct {
	Enabled   bool
	Algorithm string
}

// EncryptionSettings selects blob encryption for a pipeline run. The data
// key is generated per archive; KeyID on the resulting archive names it.
type EncryptionSettings struct {
	Enabled   bool
	Algorithm string
}

// CreateRequest describes one archive to build.
type CreateRequest struct {
	TenantID          string
	DataType          datastore.DataType
	RetentionPolicyID string
	SourceCollection  string
	Location          string
	Records           []*datastore.Record
	Compression       CompressionSettings
	Encryption        EncryptionSettings
	ScheduledDeletion ScheduledDeletion
	Actor             string
}

// Pipeline builds archives: envelope, compress, encrypt, checksum, persist.
//
// The metadata row is inserted in StatusCreating before the blob is
// written and only flipped to StatusCompleted after the blob is durable,
// so a crash between the two leaves a creating row for the startup
// reconcile to clean up instead of an untracked blob.
type Pipeline struct {
	archives Store
	blobs    BlobStore
	mirror   BlobStore
	keyring  *keys.Keyring
	logger   *slog.Logger
}

// NewPipeline creates an archive pipeline. mirror is optional; when set,
// blobs are copied to it best-effort after the primary write.
func NewPipeline(archives Store, blobs BlobStore, keyring *keys.Keyring, mirror BlobStore) (*Pipeline, error) {
	if archives == nil {
		return nil, fmt.Errorf("archive store is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}

	return &Pipeline{
		archives: archives,
		blobs:    blobs,
		mirror:   mirror,
		keyring:  keyring,
		logger:   slog.Default().With("component", "archive.pipeline"),
	}, nil
}

// Run builds and persists one archive from the request's records.
//
// On failure after the metadata row exists, the row is marked failed and
// any partial blob removed, so the caller observes all-or-nothing.
func (p *Pipeline) Run(ctx context.Context, req CreateRequest) (*Archive, error) {
	if len(req.Records) == 0 {
		return nil, fmt.Errorf("no records to archive")
	}
	if req.TenantID == "" {
		return nil, fmt.Errorf("tenant ID is required")
	}
	if req.Encryption.Enabled && p.keyring == nil {
		return nil, fmt.Errorf("encryption requested but no keyring configured")
	}

	now := time.Now().UTC()
	a := &Archive{
		ID:                NewArchiveID(),
		TenantID:          req.TenantID,
		DataType:          req.DataType,
		RetentionPolicyID: req.RetentionPolicyID,
		SourceCollection:  req.SourceCollection,
		RecordCount:       int64(len(req.Records)),
		DateRange:         recordDateRange(req.Records),
		Status:            StatusCreating,
		Restorable:        true,
		ScheduledDeletion: req.ScheduledDeletion,
		CreatedAt:         now,
	}

	// Row first: an archive the reconciler can see must exist before any
	// blob does.
	if err := p.archives.Insert(ctx, a); err != nil {
		return nil, NewPipelineError(a.ID, "insert", err)
	}

	payload, err := p.buildBlob(ctx, a, req)
	if err != nil {
		p.abort(ctx, a, err)
		return nil, err
	}

	sum := sha256.Sum256(payload)
	a.FileInfo.Checksum = hex.EncodeToString(sum[:])
	a.FileInfo.CompressedSize = int64(len(payload))

	location := req.Location
	if location == "" {
		location = "local"
	}
	a.Storage = StorageInfo{
		Location: location,
		Path:     BlobPath(a.TenantID, a.DataType, a.ID, req.Compression.Enabled, req.Encryption.Enabled),
	}

	if err := p.blobs.Write(ctx, a.Storage.Path, payload); err != nil {
		p.abort(ctx, a, err)
		return nil, NewPipelineError(a.ID, "persist", err)
	}

	if p.mirror != nil {
		if err := p.mirror.Write(ctx, a.Storage.Path, payload); err != nil {
			p.logger.Warn("mirror write failed",
				"archive_id", a.ID,
				"path", a.Storage.Path,
				"error", err,
			)
		}
	}

	if err := p.archives.MarkCompleted(ctx, a); err != nil {
		p.abort(ctx, a, err)
		return nil, NewPipelineError(a.ID, "complete", err)
	}

	_ = p.archives.AppendAuditEvent(ctx, AuditEvent{
		ArchiveID: a.ID,
		Timestamp: time.Now().UTC(),
		Event:     "created",
		Actor:     req.Actor,
		Details:   fmt.Sprintf("%d records, %d bytes", a.RecordCount, a.FileInfo.CompressedSize),
	})

	p.logger.Info("archive created",
		"archive_id", a.ID,
		"tenant_id", a.TenantID,
		"data_type", a.DataType,
		"records", a.RecordCount,
		"bytes", a.FileInfo.CompressedSize,
		"compressed", req.Compression.Enabled,
		"encrypted", req.Encryption.Enabled,
	)

	return a, nil
}

// buildBlob serializes, compresses, and encrypts the payload, recording
// sizes and encryption metadata on the archive as it goes.
func (p *Pipeline) buildBlob(ctx context.Context, a *Archive, req CreateRequest) ([]byte, error) {
	env := &Envelope{
		Metadata: EnvelopeMetadata{
			ArchiveID:         a.ID,
			TenantID:          a.TenantID,
			DataType:          a.DataType,
			SourceCollection:  a.SourceCollection,
			RecordCount:       len(req.Records),
			CreatedAt:         a.CreatedAt,
			RetentionPolicyID: a.RetentionPolicyID,
		},
		Records: req.Records,
	}

	payload, err := EncodeEnvelope(env)
	if err != nil {
		return nil, NewPipelineError(a.ID, "serialize", err)
	}
	a.FileInfo.OriginalSize = int64(len(payload))

	if req.Compression.Enabled {
		payload, err = Compress(payload)
		if err != nil {
			return nil, NewPipelineError(a.ID, "compress", err)
		}
		a.FileInfo.Algorithm = AlgorithmGzip
	}

	if req.Encryption.Enabled {
		// The wrapped data key is persisted by the keyring before this
		// returns; losing the key after the blob is written would make
		// the archive unrecoverable.
		keyID, key, err := p.keyring.CreateDataKey(ctx)
		if err != nil {
			return nil, NewPipelineError(a.ID, "key", err)
		}
		payload, err = keys.Seal(key, payload)
		if err != nil {
			return nil, NewPipelineError(a.ID, "encrypt", err)
		}
		a.Encryption = EncryptionInfo{
			Enabled:   true,
			Algorithm: keys.AlgorithmAESGCM,
			KeyID:     keyID,
		}
	}

	return payload, nil
}

// abort marks the archive failed and removes any partial blob.
func (p *Pipeline) abort(ctx context.Context, a *Archive, cause error) {
	p.logger.Error("archive creation failed",
		"archive_id", a.ID,
		"tenant_id", a.TenantID,
		"error", cause,
	)

	if err := p.archives.MarkFailed(ctx, a.ID, cause.Error()); err != nil {
		p.logger.Error("failed to mark archive failed", "archive_id", a.ID, "error", err)
	}
	if a.Storage.Path != "" {
		if err := p.blobs.Remove(ctx, a.Storage.Path); err != nil {
			p.logger.Error("failed to remove partial blob", "archive_id", a.ID, "error", err)
		}
	}
}

// recordDateRange returns the min and max occurrence times in records.
func recordDateRange(records []*datastore.Record) DateRange {
	dr := DateRange{Start: records[0].OccurredAt, End: records[0].OccurredAt}
	for _, r := range records[1:] {
		if r.OccurredAt.Before(dr.Start) {
			dr.Start = r.OccurredAt
		}
		if r.OccurredAt.After(dr.End) {
			dr.End = r.OccurredAt
		}
	}
	return dr
}

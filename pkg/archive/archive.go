package archive

import (
	"context"
	"time"

	"custodia-hq/amber/pkg/datastore"
)

// Status represents the lifecycle state of an archive.
type Status string

const (
	// StatusCreating means the metadata row exists but the blob may not.
	StatusCreating Status = "creating"

	// StatusCompleted means the blob is durably written and checksummed.
	StatusCompleted Status = "completed"

	// StatusFailed means creation aborted; any partial blob was removed.
	StatusFailed Status = "failed"

	// StatusVerifying means an integrity check is in progress.
	StatusVerifying Status = "verifying"

	// StatusVerified means the last integrity check matched the checksum.
	StatusVerified Status = "verified"

	// StatusCorrupted means the blob no longer matches its checksum.
	StatusCorrupted Status = "corrupted"

	// StatusDeleted means the blob was removed by the retention sweep.
	StatusDeleted Status = "deleted"
)

// restorableStatuses are the states an archive can be read back from.
var restorableStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusVerified:  true,
}

// DateRange covers the record timestamps packed into an archive.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// StorageInfo records where the blob lives.
type StorageInfo struct {
	// Location names the backing store ("local", or a configured remote).
	Location string `json:"location"`

	// Path is the blob path relative to the store's base.
	Path string `json:"path"`
}

// FileInfo records blob sizes and the creation-time checksum.
type FileInfo struct {
	// OriginalSize is the envelope size before compression or encryption.
	OriginalSize int64 `json:"originalSize"`

	// CompressedSize is the size of the stored blob.
	CompressedSize int64 `json:"compressedSize"`

	// Checksum is the SHA-256 hex digest of the stored blob.
	Checksum string `json:"checksum"`

	// Algorithm is the compression algorithm, empty when uncompressed.
	Algorithm string `json:"algorithm,omitempty"`
}

// EncryptionInfo records how the blob was encrypted.
type EncryptionInfo struct {
	Enabled   bool   `json:"enabled"`
	Algorithm string `json:"algorithm,omitempty"`

	// KeyID names the wrapped data key held by the keyring.
	KeyID string `json:"keyId,omitempty"`
}

// LegalHold blocks deletion of an archive while active.
type LegalHold struct {
	IsOnHold   bool       `json:"isOnHold"`
	Reason     string     `json:"reason,omitempty"`
	PlacedBy   string     `json:"placedBy,omitempty"`
	PlacedAt   *time.Time `json:"placedAt,omitempty"`
	ReleasedAt *time.Time `json:"releasedAt,omitempty"`
}

// ScheduledDeletion controls when the retention sweep may remove an archive.
type ScheduledDeletion struct {
	// DeleteAfter is the earliest instant deletion is allowed. Nil means
	// the archive is kept indefinitely.
	DeleteAfter *time.Time `json:"deleteAfter,omitempty"`

	// ApprovalRequired gates the sweep on a recorded approval.
	ApprovalRequired bool `json:"approvalRequired"`
}

// Archive is the metadata row tracking one stored blob.
type Archive struct {
	ID                string             `json:"id"`
	TenantID          string             `json:"tenantId"`
	DataType          datastore.DataType `json:"dataType"`
	RetentionPolicyID string             `json:"retentionPolicyId"`
	SourceCollection  string             `json:"sourceCollection"`
	RecordCount       int64              `json:"recordCount"`
	DateRange         DateRange          `json:"dateRange"`
	Storage           StorageInfo        `json:"storage"`
	FileInfo          FileInfo           `json:"fileInfo"`
	Encryption        EncryptionInfo     `json:"encryption"`
	Status            Status             `json:"status"`
	LegalHold         LegalHold          `json:"legalHold"`
	Restorable        bool               `json:"restorable"`
	ScheduledDeletion ScheduledDeletion  `json:"scheduledDeletion"`
	FailureReason     string             `json:"failureReason,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	CompletedAt       *time.Time         `json:"completedAt,omitempty"`
}

// CanRestore reports whether the archive is in a restorable state.
func (a *Archive) CanRestore() bool {
	return a.Restorable && restorableStatuses[a.Status]
}

// AuditEvent is one row of an archive's append-only audit trail.
type AuditEvent struct {
	ID        string    `json:"id"`
	ArchiveID string    `json:"archiveId"`
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Actor     string    `json:"actor"`
	Details   string    `json:"details,omitempty"`
}

// AccessType categorizes access-log rows.
type AccessType string

const (
	AccessVerify  AccessType = "verify"
	AccessRestore AccessType = "restore"
	AccessHold    AccessType = "hold"
	AccessRelease AccessType = "release"
)

// AccessEvent is one row of an archive's append-only access log.
type AccessEvent struct {
	ID        string     `json:"id"`
	ArchiveID string     `json:"archiveId"`
	Timestamp time.Time  `json:"timestamp"`
	Type      AccessType `json:"type"`
	Actor     string     `json:"actor"`
}

// Restoration records one restore run against an archive.
type Restoration struct {
	ID              string    `json:"id"`
	ArchiveID       string    `json:"archiveId"`
	RequestedBy     string    `json:"requestedBy"`
	RequestedAt     time.Time `json:"requestedAt"`
	RecordsRestored int64     `json:"recordsRestored"`
	TotalRecords    int64     `json:"totalRecords"`
	Status          string    `json:"status"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	TenantID          string
	DataType          datastore.DataType
	Status            Status
	RetentionPolicyID string
}

// Store persists archive metadata and its append-only child rows.
//
// Mutations are narrow transitions rather than whole-row updates so that
// completed archives stay immutable: record counts, checksums, and history
// rows can never be rewritten through this interface.
type Store interface {
	// Insert persists a new archive row in StatusCreating.
	Insert(ctx context.Context, a *Archive) error

	// MarkCompleted flips a creating archive to completed, persisting its
	// final FileInfo, Storage, Encryption, DateRange, and RecordCount.
	MarkCompleted(ctx context.Context, a *Archive) error

	// MarkFailed flips a creating archive to failed with a reason.
	MarkFailed(ctx context.Context, archiveID, reason string) error

	// UpdateStatus transitions from one status to another. The transition
	// fails with a StateError when the current status is not from.
	UpdateStatus(ctx context.Context, archiveID string, from, to Status) error

	// SetLegalHold replaces the archive's legal hold state.
	SetLegalHold(ctx context.Context, archiveID string, hold LegalHold) error

	// Get returns an archive by ID.
	Get(ctx context.Context, archiveID string) (*Archive, error)

	// List returns archives matching the filter, ordered by creation time.
	List(ctx context.Context, filter Filter) ([]*Archive, error)

	// AppendAuditEvent appends a row to the archive's audit trail.
	AppendAuditEvent(ctx context.Context, event AuditEvent) error

	// AuditTrail returns the archive's audit trail in append order.
	AuditTrail(ctx context.Context, archiveID string) ([]AuditEvent, error)

	// AppendAccessEvent appends a row to the archive's access log.
	AppendAccessEvent(ctx context.Context, event AccessEvent) error

	// AccessLog returns the archive's access log in append order.
	AccessLog(ctx context.Context, archiveID string) ([]AccessEvent, error)

	// AppendRestoration appends a restoration record.
	AppendRestoration(ctx context.Context, r Restoration) error

	// Restorations returns the archive's restoration history in append order.
	Restorations(ctx context.Context, archiveID string) ([]Restoration, error)

	// Close releases store resources.
	Close() error
}

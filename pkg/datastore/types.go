package datastore

import (
	"context"
	"time"
)

// DataType identifies a category of tenant data managed by retention policies.
type DataType string

// Built-in data types. Deployments may register additional types through
// the Registry; these cover the collections the runtime ships with.
const (
	DataTypeAuditLogs    DataType = "audit_logs"
	DataTypeTransactions DataType = "transactions"
	DataTypeDocuments    DataType = "documents"
	DataTypeMessages     DataType = "messages"
)

// BuiltinDataTypes returns the data types registered by default.
func BuiltinDataTypes() []DataType {
	return []DataType{
		DataTypeAuditLogs,
		DataTypeTransactions,
		DataTypeDocuments,
		DataTypeMessages,
	}
}

// Record is the unit of tenant data under retention management.
//
// Payload holds the domain document itself; the retention machinery only
// reads the envelope fields (tenant, timestamps, deletion mark) and treats
// the payload as opaque.
type Record struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenantId"`
	OccurredAt time.Time      `json:"occurredAt"`
	Deletion   *DeletionMark  `json:"deletion,omitempty"`
	ArchivedAt *time.Time     `json:"archivedAt,omitempty"`
	ArchiveID  string         `json:"archiveId,omitempty"`
	Payload    map[string]any `json:"payload"`
}

// DeletionMark records a soft deletion in place of removing the row.
type DeletionMark struct {
	DeletedAt time.Time `json:"deletedAt"`
	DeletedBy string    `json:"deletedBy"`
	Reason    string    `json:"reason"`
}

// EntityStore is the storage contract for one data type's collection.
//
// All operations are tenant-scoped; implementations must reject an empty
// tenant ID rather than fall through to a cross-tenant query. Query methods
// return live records only (no soft-deleted rows). The archive window
// queries additionally exclude records that have already been archived.
type EntityStore interface {
	// Collection returns the collection name records of this type live in.
	Collection() string

	// Insert persists a record. An empty ID is assigned before writing.
	Insert(ctx context.Context, record *Record) error

	// QueryOlderThan returns live records with OccurredAt before cutoff.
	QueryOlderThan(ctx context.Context, tenantID string, cutoff time.Time) ([]*Record, error)

	// QueryBetween returns live, not-yet-archived records with
	// start <= OccurredAt < end.
	QueryBetween(ctx context.Context, tenantID string, start, end time.Time) ([]*Record, error)

	// CountOlderThan counts live records with OccurredAt before cutoff.
	CountOlderThan(ctx context.Context, tenantID string, cutoff time.Time) (int64, error)

	// SoftDelete marks the given records deleted in place and returns the
	// number of records affected.
	SoftDelete(ctx context.Context, tenantID string, ids []string, mark DeletionMark) (int64, error)

	// HardDelete removes the given records and returns the number removed.
	HardDelete(ctx context.Context, tenantID string, ids []string) (int64, error)

	// PurgeSoftDeleted removes records soft-deleted before cutoff and
	// returns the number removed.
	PurgeSoftDeleted(ctx context.Context, tenantID string, cutoff time.Time) (int64, error)

	// MarkArchived stamps records with the archive that now holds them so
	// later runs do not archive them again.
	MarkArchived(ctx context.Context, tenantID string, ids []string, archiveID string, at time.Time) (int64, error)

	// Close releases resources held by the store.
	Close() error
}

// Registry resolves data types to their entity stores.
type Registry interface {
	// Store returns the entity store for the data type, or an
	// UnknownDataTypeError if the type was never registered.
	Store(dataType DataType) (EntityStore, error)

	// DataTypes returns the registered data types in sorted order.
	DataTypes() []DataType
}

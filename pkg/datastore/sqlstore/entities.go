package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"custodia-hq/amber/pkg/datastore"
)

// EntityStore implements datastore.EntityStore on the shared DB handle.
// All data types live in one records table; each store filters on its own
// data_type column.
type EntityStore struct {
	db       *DB
	dataType datastore.DataType
}

// NewEntityStore creates a SQL-backed entity store for a data type.
func NewEntityStore(db *DB, dataType datastore.DataType) *EntityStore {
	return &EntityStore{db: db, dataType: dataType}
}

// NewRegistry creates a registry with a SQL-backed store per data type.
func NewRegistry(db *DB, dataTypes []datastore.DataType) *datastore.StoreRegistry {
	registry := datastore.NewStoreRegistry()
	for _, dt := range dataTypes {
		registry.Register(dt, NewEntityStore(db, dt))
	}
	return registry
}

// Collection returns the collection name.
func (s *EntityStore) Collection() string {
	return string(s.dataType)
}

// Insert persists a record. An empty ID is assigned before writing.
func (s *EntityStore) Insert(ctx context.Context, record *datastore.Record) error {
	if record.TenantID == "" {
		return datastore.NewInvalidTenantError("insert")
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "insert", err)
	}

	var deletedAt, deletedBy, deleteReason any
	if record.Deletion != nil {
		deletedAt = record.Deletion.DeletedAt.UnixNano()
		deletedBy = record.Deletion.DeletedBy
		deleteReason = record.Deletion.Reason
	}

	var archiveID any
	if record.ArchiveID != "" {
		archiveID = record.ArchiveID
	}

	query := `
		INSERT INTO records (
			id, data_type, tenant_id, occurred_at,
			deleted_at, deleted_by, delete_reason,
			archived_at, archive_id, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.db.ExecContext(ctx, s.db.rebind(query),
		record.ID, string(s.dataType), record.TenantID, toNanos(record.OccurredAt),
		deletedAt, deletedBy, deleteReason,
		toNanosPtr(record.ArchivedAt), archiveID, string(payload),
	)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "insert", err)
	}

	return nil
}

// QueryOlderThan returns live records with OccurredAt before cutoff.
func (s *EntityStore) QueryOlderThan(ctx context.Context, tenantID string, cutoff time.Time) ([]*datastore.Record, error) {
	if tenantID == "" {
		return nil, datastore.NewInvalidTenantError("query_older_than")
	}

	query := recordColumns + `
		FROM records
		WHERE data_type = ? AND tenant_id = ?
		  AND deleted_at IS NULL
		  AND occurred_at < ?
		ORDER BY occurred_at, id
	`

	return s.queryRecords(ctx, "query_older_than", query,
		string(s.dataType), tenantID, toNanos(cutoff))
}

// QueryBetween returns live, not-yet-archived records with
// start <= OccurredAt < end.
func (s *EntityStore) QueryBetween(ctx context.Context, tenantID string, start, end time.Time) ([]*datastore.Record, error) {
	if tenantID == "" {
		return nil, datastore.NewInvalidTenantError("query_between")
	}

	query := recordColumns + `
		FROM records
		WHERE data_type = ? AND tenant_id = ?
		  AND deleted_at IS NULL
		  AND archived_at IS NULL
		  AND occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at, id
	`

	return s.queryRecords(ctx, "query_between", query,
		string(s.dataType), tenantID, toNanos(start), toNanos(end))
}

// CountOlderThan counts live records with OccurredAt before cutoff.
func (s *EntityStore) CountOlderThan(ctx context.Context, tenantID string, cutoff time.Time) (int64, error) {
	if tenantID == "" {
		return 0, datastore.NewInvalidTenantError("count_older_than")
	}

	query := `
		SELECT COUNT(*)
		FROM records
		WHERE data_type = ? AND tenant_id = ?
		  AND deleted_at IS NULL
		  AND occurred_at < ?
	`

	var count int64
	err := s.db.db.QueryRowContext(ctx, s.db.rebind(query),
		string(s.dataType), tenantID, toNanos(cutoff)).Scan(&count)
	if err != nil {
		return 0, datastore.NewStorageError(s.db.driver, "count_older_than", err)
	}

	return count, nil
}

// SoftDelete marks the given records deleted in place.
func (s *EntityStore) SoftDelete(ctx context.Context, tenantID string, ids []string, mark datastore.DeletionMark) (int64, error) {
	if tenantID == "" {
		return 0, datastore.NewInvalidTenantError("soft_delete")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE records
		SET deleted_at = ?, deleted_by = ?, delete_reason = ?
		WHERE data_type = ? AND tenant_id = ?
		  AND deleted_at IS NULL
		  AND id IN (` + placeholders(len(ids)) + `)
	`

	args := []any{toNanos(mark.DeletedAt), mark.DeletedBy, mark.Reason,
		string(s.dataType), tenantID}
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := s.db.db.ExecContext(ctx, s.db.rebind(query), args...)
	if err != nil {
		return 0, datastore.NewStorageError(s.db.driver, "soft_delete", err)
	}

	return rowsAffected(s.db.driver, "soft_delete", result)
}

// HardDelete removes the given records.
func (s *EntityStore) HardDelete(ctx context.Context, tenantID string, ids []string) (int64, error) {
	if tenantID == "" {
		return 0, datastore.NewInvalidTenantError("hard_delete")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		DELETE FROM records
		WHERE data_type = ? AND tenant_id = ?
		  AND id IN (` + placeholders(len(ids)) + `)
	`

	args := []any{string(s.dataType), tenantID}
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := s.db.db.ExecContext(ctx, s.db.rebind(query), args...)
	if err != nil {
		return 0, datastore.NewStorageError(s.db.driver, "hard_delete", err)
	}

	return rowsAffected(s.db.driver, "hard_delete", result)
}

// PurgeSoftDeleted removes records soft-deleted before cutoff.
func (s *EntityStore) PurgeSoftDeleted(ctx context.Context, tenantID string, cutoff time.Time) (int64, error) {
	if tenantID == "" {
		return 0, datastore.NewInvalidTenantError("purge_soft_deleted")
	}

	query := `
		DELETE FROM records
		WHERE data_type = ? AND tenant_id = ?
		  AND deleted_at IS NOT NULL
		  AND deleted_at < ?
	`

	result, err := s.db.db.ExecContext(ctx, s.db.rebind(query),
		string(s.dataType), tenantID, toNanos(cutoff))
	if err != nil {
		return 0, datastore.NewStorageError(s.db.driver, "purge_soft_deleted", err)
	}

	return rowsAffected(s.db.driver, "purge_soft_deleted", result)
}

// MarkArchived stamps records with the archive that now holds them.
func (s *EntityStore) MarkArchived(ctx context.Context, tenantID string, ids []string, archiveID string, at time.Time) (int64, error) {
	if tenantID == "" {
		return 0, datastore.NewInvalidTenantError("mark_archived")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE records
		SET archived_at = ?, archive_id = ?
		WHERE data_type = ? AND tenant_id = ?
		  AND id IN (` + placeholders(len(ids)) + `)
	`

	args := []any{toNanos(at), archiveID, string(s.dataType), tenantID}
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := s.db.db.ExecContext(ctx, s.db.rebind(query), args...)
	if err != nil {
		return 0, datastore.NewStorageError(s.db.driver, "mark_archived", err)
	}

	return rowsAffected(s.db.driver, "mark_archived", result)
}

// Close is a no-op: the shared DB handle is closed by its owner.
func (s *EntityStore) Close() error {
	return nil
}

// recordColumns is the SELECT list matching scanRecord.
const recordColumns = `
	SELECT id, tenant_id, occurred_at,
	       deleted_at, deleted_by, delete_reason,
	       archived_at, archive_id, payload
`

func (s *EntityStore) queryRecords(ctx context.Context, operation, query string, args ...any) ([]*datastore.Record, error) {
	rows, err := s.db.db.QueryContext(ctx, s.db.rebind(query), args...)
	if err != nil {
		return nil, datastore.NewStorageError(s.db.driver, operation, err)
	}
	defer rows.Close()

	var records []*datastore.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, datastore.NewStorageError(s.db.driver, operation, err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, datastore.NewStorageError(s.db.driver, operation, err)
	}

	return records, nil
}

func scanRecord(rows *sql.Rows) (*datastore.Record, error) {
	var (
		record       datastore.Record
		occurredAt   int64
		deletedAt    sql.NullInt64
		deletedBy    sql.NullString
		deleteReason sql.NullString
		archivedAt   sql.NullInt64
		archiveID    sql.NullString
		payload      []byte
	)

	err := rows.Scan(&record.ID, &record.TenantID, &occurredAt,
		&deletedAt, &deletedBy, &deleteReason,
		&archivedAt, &archiveID, &payload)
	if err != nil {
		return nil, err
	}

	record.OccurredAt = fromNanos(occurredAt)
	if deletedAt.Valid {
		record.Deletion = &datastore.DeletionMark{
			DeletedAt: fromNanos(deletedAt.Int64),
			DeletedBy: deletedBy.String,
			Reason:    deleteReason.String,
		}
	}
	record.ArchivedAt = fromNanosPtr(archivedAt)
	record.ArchiveID = archiveID.String

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &record.Payload); err != nil {
			return nil, err
		}
	}

	return &record, nil
}

func rowsAffected(driver, operation string, result sql.Result) (int64, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, datastore.NewStorageError(driver, operation, err)
	}
	return affected, nil
}

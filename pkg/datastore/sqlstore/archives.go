package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"custodia-hq/amber/pkg/archive"
	"custodia-hq/amber/pkg/datastore"
)

// ArchiveStore implements archive.Store on the shared DB handle.
//
// Status transitions are guarded in SQL: the UPDATE carries the expected
// current status in its WHERE clause, so a lost race surfaces as zero rows
// affected rather than a silently clobbered row.
type ArchiveStore struct {
	db *DB
}

// NewArchiveStore creates a SQL-backed archive store.
func NewArchiveStore(db *DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

// Insert persists a new archive row in StatusCreating.
func (s *ArchiveStore) Insert(ctx context.Context, a *archive.Archive) error {
	if a.Status == "" {
		a.Status = archive.StatusCreating
	}

	query := `
		INSERT INTO archives (
			id, tenant_id, data_type, retention_policy_id, source_collection,
			record_count, range_start, range_end,
			storage_location, storage_path,
			original_size, compressed_size, checksum, compression_algorithm,
			encryption_enabled, encryption_algorithm, encryption_key_id,
			status, failure_reason,
			hold_active, hold_reason, hold_placed_by, hold_placed_at, hold_released_at,
			restorable, delete_after, delete_approval_required,
			created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.db.ExecContext(ctx, s.db.rebind(query),
		a.ID, a.TenantID, string(a.DataType), a.RetentionPolicyID, a.SourceCollection,
		a.RecordCount, toNanos(a.DateRange.Start), toNanos(a.DateRange.End),
		a.Storage.Location, a.Storage.Path,
		a.FileInfo.OriginalSize, a.FileInfo.CompressedSize, a.FileInfo.Checksum, a.FileInfo.Algorithm,
		a.Encryption.Enabled, a.Encryption.Algorithm, a.Encryption.KeyID,
		string(a.Status), a.FailureReason,
		a.LegalHold.IsOnHold, a.LegalHold.Reason, a.LegalHold.PlacedBy,
		toNanosPtr(a.LegalHold.PlacedAt), toNanosPtr(a.LegalHold.ReleasedAt),
		a.Restorable, toNanosPtr(a.ScheduledDeletion.DeleteAfter), a.ScheduledDeletion.ApprovalRequired,
		toNanos(a.CreatedAt), toNanosPtr(a.CompletedAt),
	)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "insert_archive", err)
	}

	return nil
}

// MarkCompleted flips a creating archive to completed, persisting its final
// FileInfo, Storage, Encryption, DateRange, and RecordCount.
func (s *ArchiveStore) MarkCompleted(ctx context.Context, a *archive.Archive) error {
	now := time.Now().UTC()

	query := `
		UPDATE archives
		SET status = ?, completed_at = ?,
		    record_count = ?, range_start = ?, range_end = ?,
		    storage_location = ?, storage_path = ?,
		    original_size = ?, compressed_size = ?, checksum = ?, compression_algorithm = ?,
		    encryption_enabled = ?, encryption_algorithm = ?, encryption_key_id = ?
		WHERE id = ? AND status = ?
	`

	result, err := s.db.db.ExecContext(ctx, s.db.rebind(query),
		string(archive.StatusCompleted), toNanos(now),
		a.RecordCount, toNanos(a.DateRange.Start), toNanos(a.DateRange.End),
		a.Storage.Location, a.Storage.Path,
		a.FileInfo.OriginalSize, a.FileInfo.CompressedSize, a.FileInfo.Checksum, a.FileInfo.Algorithm,
		a.Encryption.Enabled, a.Encryption.Algorithm, a.Encryption.KeyID,
		a.ID, string(archive.StatusCreating),
	)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "mark_completed", err)
	}

	affected, err := rowsAffected(s.db.driver, "mark_completed", result)
	if err != nil {
		return err
	}
	if affected == 0 {
		return s.transitionFailure(ctx, a.ID, "complete")
	}

	a.Status = archive.StatusCompleted
	a.CompletedAt = &now
	return nil
}

// MarkFailed flips a creating archive to failed with a reason.
func (s *ArchiveStore) MarkFailed(ctx context.Context, archiveID, reason string) error {
	query := `
		UPDATE archives
		SET status = ?, failure_reason = ?
		WHERE id = ? AND status = ?
	`

	result, err := s.db.db.ExecContext(ctx, s.db.rebind(query),
		string(archive.StatusFailed), reason,
		archiveID, string(archive.StatusCreating),
	)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "mark_failed", err)
	}

	affected, err := rowsAffected(s.db.driver, "mark_failed", result)
	if err != nil {
		return err
	}
	if affected == 0 {
		return s.transitionFailure(ctx, archiveID, "fail")
	}

	return nil
}

// UpdateStatus transitions from one status to another.
func (s *ArchiveStore) UpdateStatus(ctx context.Context, archiveID string, from, to archive.Status) error {
	query := `UPDATE archives SET status = ? WHERE id = ? AND status = ?`

	result, err := s.db.db.ExecContext(ctx, s.db.rebind(query),
		string(to), archiveID, string(from))
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "update_status", err)
	}

	affected, err := rowsAffected(s.db.driver, "update_status", result)
	if err != nil {
		return err
	}
	if affected == 0 {
		return s.transitionFailure(ctx, archiveID, "transition to "+string(to))
	}

	return nil
}

// SetLegalHold replaces the archive's legal hold state.
func (s *ArchiveStore) SetLegalHold(ctx context.Context, archiveID string, hold archive.LegalHold) error {
	query := `
		UPDATE archives
		SET hold_active = ?, hold_reason = ?, hold_placed_by = ?,
		    hold_placed_at = ?, hold_released_at = ?
		WHERE id = ?
	`

	result, err := s.db.db.ExecContext(ctx, s.db.rebind(query),
		hold.IsOnHold, hold.Reason, hold.PlacedBy,
		toNanosPtr(hold.PlacedAt), toNanosPtr(hold.ReleasedAt),
		archiveID,
	)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "set_legal_hold", err)
	}

	affected, err := rowsAffected(s.db.driver, "set_legal_hold", result)
	if err != nil {
		return err
	}
	if affected == 0 {
		return archive.NewNotFoundError(archiveID)
	}

	return nil
}

// Get returns an archive by ID.
func (s *ArchiveStore) Get(ctx context.Context, archiveID string) (*archive.Archive, error) {
	query := archiveColumns + ` FROM archives WHERE id = ?`

	rows, err := s.db.db.QueryContext(ctx, s.db.rebind(query), archiveID)
	if err != nil {
		return nil, datastore.NewStorageError(s.db.driver, "get_archive", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, datastore.NewStorageError(s.db.driver, "get_archive", err)
		}
		return nil, archive.NewNotFoundError(archiveID)
	}

	a, err := scanArchive(rows)
	if err != nil {
		return nil, datastore.NewStorageError(s.db.driver, "get_archive", err)
	}

	return a, nil
}

// List returns archives matching the filter, ordered by creation time.
func (s *ArchiveStore) List(ctx context.Context, filter archive.Filter) ([]*archive.Archive, error) {
	query := archiveColumns + ` FROM archives`
	var (
		conditions []string
		args       []any
	)
	if filter.TenantID != "" {
		conditions = append(conditions, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.DataType != "" {
		conditions = append(conditions, "data_type = ?")
		args = append(args, string(filter.DataType))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.RetentionPolicyID != "" {
		conditions = append(conditions, "retention_policy_id = ?")
		args = append(args, filter.RetentionPolicyID)
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
			continue
		}
		query += " AND " + cond
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.db.QueryContext(ctx, s.db.rebind(query), args...)
	if err != nil {
		return nil, datastore.NewStorageError(s.db.driver, "list_archives", err)
	}
	defer rows.Close()

	var archives []*archive.Archive
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, datastore.NewStorageError(s.db.driver, "list_archives", err)
		}
		archives = append(archives, a)
	}

	if err := rows.Err(); err != nil {
		return nil, datastore.NewStorageError(s.db.driver, "list_archives", err)
	}

	return archives, nil
}

// AppendAuditEvent appends a row to the archive's audit trail.
func (s *ArchiveStore) AppendAuditEvent(ctx context.Context, event archive.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	query := `
		INSERT INTO archive_audit_trail (id, archive_id, event_time, event, actor, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.db.ExecContext(ctx, s.db.rebind(query),
		event.ID, event.ArchiveID, toNanos(event.Timestamp),
		event.Event, event.Actor, event.Details,
	)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "append_audit_event", err)
	}

	return nil
}

// AuditTrail returns the archive's audit trail in append order.
func (s *ArchiveStore) AuditTrail(ctx context.Context, archiveID string) ([]archive.AuditEvent, error) {
	query := `
		SELECT id, archive_id, event_time, event, actor, details
		FROM archive_audit_trail
		WHERE archive_id = ?
		ORDER BY event_time, id
	`

	rows, err := s.db.db.QueryContext(ctx, s.db.rebind(query), archiveID)
	if err != nil {
		return nil, datastore.NewStorageError(s.db.driver, "audit_trail", err)
	}
	defer rows.Close()

	events := []archive.AuditEvent{}
	for rows.Next() {
		var (
			event     archive.AuditEvent
			eventTime int64
		)
		err := rows.Scan(&event.ID, &event.ArchiveID, &eventTime,
			&event.Event, &event.Actor, &event.Details)
		if err != nil {
			return nil, datastore.NewStorageError(s.db.driver, "audit_trail", err)
		}
		event.Timestamp = fromNanos(eventTime)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, datastore.NewStorageError(s.db.driver, "audit_trail", err)
	}

	return events, nil
}

// AppendAccessEvent appends a row to the archive's access log.
func (s *ArchiveStore) AppendAccessEvent(ctx context.Context, event archive.AccessEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	query := `
		INSERT INTO archive_access_log (id, archive_id, accessed_at, access_type, actor)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.db.ExecContext(ctx, s.db.rebind(query),
		event.ID, event.ArchiveID, toNanos(event.Timestamp),
		string(event.Type), event.Actor,
	)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "append_access_event", err)
	}

	return nil
}

// AccessLog returns the archive's access log in append order.
func (s *ArchiveStore) AccessLog(ctx context.Context, archiveID string) ([]archive.AccessEvent, error) {
	query := `
		SELECT id, archive_id, accessed_at, access_type, actor
		FROM archive_access_log
		WHERE archive_id = ?
		ORDER BY accessed_at, id
	`

	rows, err := s.db.db.QueryContext(ctx, s.db.rebind(query), archiveID)
	if err != nil {
		return nil, datastore.NewStorageError(s.db.driver, "access_log", err)
	}
	defer rows.Close()

	events := []archive.AccessEvent{}
	for rows.Next() {
		var (
			event      archive.AccessEvent
			accessedAt int64
			accessType string
		)
		err := rows.Scan(&event.ID, &event.ArchiveID, &accessedAt, &accessType, &event.Actor)
		if err != nil {
			return nil, datastore.NewStorageError(s.db.driver, "access_log", err)
		}
		event.Timestamp = fromNanos(accessedAt)
		event.Type = archive.AccessType(accessType)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, datastore.NewStorageError(s.db.driver, "access_log", err)
	}

	return events, nil
}

// AppendRestoration appends a restoration record.
func (s *ArchiveStore) AppendRestoration(ctx context.Context, r archive.Restoration) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	query := `
		INSERT INTO archive_restorations (
			id, archive_id, requested_by, requested_at,
			records_restored, total_records, status
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.db.ExecContext(ctx, s.db.rebind(query),
		r.ID, r.ArchiveID, r.RequestedBy, toNanos(r.RequestedAt),
		r.RecordsRestored, r.TotalRecords, r.Status,
	)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "append_restoration", err)
	}

	return nil
}

// Restorations returns the archive's restoration history in append order.
func (s *ArchiveStore) Restorations(ctx context.Context, archiveID string) ([]archive.Restoration, error) {
	query := `
		SELECT id, archive_id, requested_by, requested_at,
		       records_restored, total_records, status
		FROM archive_restorations
		WHERE archive_id = ?
		ORDER BY requested_at, id
	`

	rows, err := s.db.db.QueryContext(ctx, s.db.rebind(query), archiveID)
	if err != nil {
		return nil, datastore.NewStorageError(s.db.driver, "restorations", err)
	}
	defer rows.Close()

	restorations := []archive.Restoration{}
	for rows.Next() {
		var (
			r           archive.Restoration
			requestedAt int64
		)
		err := rows.Scan(&r.ID, &r.ArchiveID, &r.RequestedBy, &requestedAt,
			&r.RecordsRestored, &r.TotalRecords, &r.Status)
		if err != nil {
			return nil, datastore.NewStorageError(s.db.driver, "restorations", err)
		}
		r.RequestedAt = fromNanos(requestedAt)
		restorations = append(restorations, r)
	}

	if err := rows.Err(); err != nil {
		return nil, datastore.NewStorageError(s.db.driver, "restorations", err)
	}

	return restorations, nil
}

// Close is a no-op: the shared DB handle is closed by its owner.
func (s *ArchiveStore) Close() error {
	return nil
}

// transitionFailure turns a zero-row guarded update into the right error:
// NotFoundError when the archive does not exist, StateError otherwise.
func (s *ArchiveStore) transitionFailure(ctx context.Context, archiveID, operation string) error {
	var status string
	query := `SELECT status FROM archives WHERE id = ?`
	err := s.db.db.QueryRowContext(ctx, s.db.rebind(query), archiveID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return archive.NewNotFoundError(archiveID)
	}
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "get_archive_status", err)
	}
	return archive.NewStateError(archiveID, archive.Status(status), operation)
}

// archiveColumns is the SELECT list matching scanArchive.
const archiveColumns = `
	SELECT id, tenant_id, data_type, retention_policy_id, source_collection,
	       record_count, range_start, range_end,
	       storage_location, storage_path,
	       original_size, compressed_size, checksum, compression_algorithm,
	       encryption_enabled, encryption_algorithm, encryption_key_id,
	       status, failure_reason,
	       hold_active, hold_reason, hold_placed_by, hold_placed_at, hold_released_at,
	       restorable, delete_after, delete_approval_required,
	       created_at, completed_at
`

func scanArchive(rows *sql.Rows) (*archive.Archive, error) {
	var (
		a              archive.Archive
		dataType       string
		rangeStart     int64
		rangeEnd       int64
		status         string
		holdPlacedAt   sql.NullInt64
		holdReleasedAt sql.NullInt64
		deleteAfter    sql.NullInt64
		createdAt      int64
		completedAt    sql.NullInt64
	)

	err := rows.Scan(&a.ID, &a.TenantID, &dataType, &a.RetentionPolicyID, &a.SourceCollection,
		&a.RecordCount, &rangeStart, &rangeEnd,
		&a.Storage.Location, &a.Storage.Path,
		&a.FileInfo.OriginalSize, &a.FileInfo.CompressedSize, &a.FileInfo.Checksum, &a.FileInfo.Algorithm,
		&a.Encryption.Enabled, &a.Encryption.Algorithm, &a.Encryption.KeyID,
		&status, &a.FailureReason,
		&a.LegalHold.IsOnHold, &a.LegalHold.Reason, &a.LegalHold.PlacedBy, &holdPlacedAt, &holdReleasedAt,
		&a.Restorable, &deleteAfter, &a.ScheduledDeletion.ApprovalRequired,
		&createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	a.DataType = datastore.DataType(dataType)
	a.DateRange.Start = fromNanos(rangeStart)
	a.DateRange.End = fromNanos(rangeEnd)
	a.Status = archive.Status(status)
	a.LegalHold.PlacedAt = fromNanosPtr(holdPlacedAt)
	a.LegalHold.ReleasedAt = fromNanosPtr(holdReleasedAt)
	a.ScheduledDeletion.DeleteAfter = fromNanosPtr(deleteAfter)
	a.CreatedAt = fromNanos(createdAt)
	a.CompletedAt = fromNanosPtr(completedAt)

	return &a, nil
}

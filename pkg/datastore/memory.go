package datastore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryEntityStore implements the EntityStore interface using an in-memory map.
// This implementation is intended for testing and single-process deployments.
type MemoryEntityStore struct {
	collection string
	records    map[string]*Record
	mu         sync.RWMutex
}

// NewMemoryEntityStore creates a new in-memory entity store for a data type.
func NewMemoryEntityStore(dataType DataType) *MemoryEntityStore {
	return &MemoryEntityStore{
		collection: string(dataType),
		records:    make(map[string]*Record),
	}
}

// NewMemoryRegistry creates a registry with an in-memory store per data type.
func NewMemoryRegistry(dataTypes []DataType) *StoreRegistry {
	registry := NewStoreRegistry()
	for _, dt := range dataTypes {
		registry.Register(dt, NewMemoryEntityStore(dt))
	}
	return registry
}

// Collection returns the collection name.
func (s *MemoryEntityStore) Collection() string {
	return s.collection
}

// Insert persists a record to memory. An empty ID is assigned before writing.
func (s *MemoryEntityStore) Insert(ctx context.Context, record *Record) error {
	if record.TenantID == "" {
		return NewInvalidTenantError("insert")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Create a copy to avoid mutation
	recordCopy := *record
	if recordCopy.ID == "" {
		recordCopy.ID = uuid.New().String()
		record.ID = recordCopy.ID
	}
	s.records[recordCopy.ID] = &recordCopy

	return nil
}

// QueryOlderThan returns live records with OccurredAt before cutoff.
func (s *MemoryEntityStore) QueryOlderThan(ctx context.Context, tenantID string, cutoff time.Time) ([]*Record, error) {
	if tenantID == "" {
		return nil, NewInvalidTenantError("query_older_than")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Record
	for _, record := range s.records {
		if record.TenantID != tenantID || record.Deletion != nil {
			continue
		}
		if record.OccurredAt.Before(cutoff) {
			recordCopy := *record
			results = append(results, &recordCopy)
		}
	}

	return results, nil
}

// QueryBetween returns live, not-yet-archived records with start <= OccurredAt < end.
func (s *MemoryEntityStore) QueryBetween(ctx context.Context, tenantID string, start, end time.Time) ([]*Record, error) {
	if tenantID == "" {
		return nil, NewInvalidTenantError("query_between")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Record
	for _, record := range s.records {
		if record.TenantID != tenantID || record.Deletion != nil || record.ArchivedAt != nil {
			continue
		}
		if !record.OccurredAt.Before(start) && record.OccurredAt.Before(end) {
			recordCopy := *record
			results = append(results, &recordCopy)
		}
	}

	return results, nil
}

// CountOlderThan counts live records with OccurredAt before cutoff.
func (s *MemoryEntityStore) CountOlderThan(ctx context.Context, tenantID string, cutoff time.Time) (int64, error) {
	if tenantID == "" {
		return 0, NewInvalidTenantError("count_older_than")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if record.TenantID != tenantID || record.Deletion != nil {
			continue
		}
		if record.OccurredAt.Before(cutoff) {
			count++
		}
	}

	return count, nil
}

// SoftDelete marks the given records deleted in place.
func (s *MemoryEntityStore) SoftDelete(ctx context.Context, tenantID string, ids []string, mark DeletionMark) (int64, error) {
	if tenantID == "" {
		return 0, NewInvalidTenantError("soft_delete")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for _, id := range ids {
		record, ok := s.records[id]
		if !ok || record.TenantID != tenantID || record.Deletion != nil {
			continue
		}
		markCopy := mark
		record.Deletion = &markCopy
		affected++
	}

	return affected, nil
}

// HardDelete removes the given records.
func (s *MemoryEntityStore) HardDelete(ctx context.Context, tenantID string, ids []string) (int64, error) {
	if tenantID == "" {
		return 0, NewInvalidTenantError("hard_delete")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, id := range ids {
		record, ok := s.records[id]
		if !ok || record.TenantID != tenantID {
			continue
		}
		delete(s.records, id)
		deleted++
	}

	return deleted, nil
}

// PurgeSoftDeleted removes records soft-deleted before cutoff.
func (s *MemoryEntityStore) PurgeSoftDeleted(ctx context.Context, tenantID string, cutoff time.Time) (int64, error) {
	if tenantID == "" {
		return 0, NewInvalidTenantError("purge_soft_deleted")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	toDelete := []string{}
	for id, record := range s.records {
		if record.TenantID != tenantID || record.Deletion == nil {
			continue
		}
		if record.Deletion.DeletedAt.Before(cutoff) {
			toDelete = append(toDelete, id)
		}
	}

	for _, id := range toDelete {
		delete(s.records, id)
	}

	return int64(len(toDelete)), nil
}

// MarkArchived stamps records with the archive that now holds them.
func (s *MemoryEntityStore) MarkArchived(ctx context.Context, tenantID string, ids []string, archiveID string, at time.Time) (int64, error) {
	if tenantID == "" {
		return 0, NewInvalidTenantError("mark_archived")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for _, id := range ids {
		record, ok := s.records[id]
		if !ok || record.TenantID != tenantID {
			continue
		}
		archivedAt := at
		record.ArchivedAt = &archivedAt
		record.ArchiveID = archiveID
		affected++
	}

	return affected, nil
}

// Close releases resources held by the store.
func (s *MemoryEntityStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*Record)
	return nil
}

// GetByID retrieves a single record by ID (for testing).
func (s *MemoryEntityStore) GetByID(id string) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil
	}

	recordCopy := *record
	return &recordCopy
}

// Size returns the number of records in the store (for testing).
func (s *MemoryEntityStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Clear removes all records from the store (for testing).
func (s *MemoryEntityStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*Record)
}

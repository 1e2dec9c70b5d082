package archive

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory archive store for tests and development.
type MemoryStore struct {
	mu           sync.RWMutex
	archives     map[string]*Archive
	auditTrails  map[string][]AuditEvent
	accessLogs   map[string][]AccessEvent
	restorations map[string][]Restoration
}

// NewMemoryStore creates an empty in-memory archive store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		archives:     make(map[string]*Archive),
		auditTrails:  make(map[string][]AuditEvent),
		accessLogs:   make(map[string][]AccessEvent),
		restorations: make(map[string][]Restoration),
	}
}

// Insert implements Store.
func (s *MemoryStore) Insert(ctx context.Context, a *Archive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.Status == "" {
		a.Status = StatusCreating
	}
	archiveCopy := *a
	s.archives[a.ID] = &archiveCopy
	return nil
}

// MarkCompleted implements Store.
func (s *MemoryStore) MarkCompleted(ctx context.Context, a *Archive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.archives[a.ID]
	if !ok {
		return NewNotFoundError(a.ID)
	}
	if stored.Status != StatusCreating {
		return NewStateError(a.ID, stored.Status, "complete")
	}

	now := time.Now().UTC()
	archiveCopy := *a
	archiveCopy.Status = StatusCompleted
	archiveCopy.CompletedAt = &now
	s.archives[a.ID] = &archiveCopy

	a.Status = StatusCompleted
	a.CompletedAt = &now
	return nil
}

// MarkFailed implements Store.
func (s *MemoryStore) MarkFailed(ctx context.Context, archiveID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.archives[archiveID]
	if !ok {
		return NewNotFoundError(archiveID)
	}
	if stored.Status != StatusCreating {
		return NewStateError(archiveID, stored.Status, "fail")
	}

	stored.Status = StatusFailed
	stored.FailureReason = reason
	return nil
}

// UpdateStatus implements Store.
func (s *MemoryStore) UpdateStatus(ctx context.Context, archiveID string, from, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.archives[archiveID]
	if !ok {
		return NewNotFoundError(archiveID)
	}
	if stored.Status != from {
		return NewStateError(archiveID, stored.Status, "transition to "+string(to))
	}

	stored.Status = to
	return nil
}

// SetLegalHold implements Store.
func (s *MemoryStore) SetLegalHold(ctx context.Context, archiveID string, hold LegalHold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.archives[archiveID]
	if !ok {
		return NewNotFoundError(archiveID)
	}

	stored.LegalHold = hold
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, archiveID string) (*Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.archives[archiveID]
	if !ok {
		return nil, NewNotFoundError(archiveID)
	}

	archiveCopy := *stored
	return &archiveCopy, nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]*Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Archive
	for _, a := range s.archives {
		if !matchesFilter(a, filter) {
			continue
		}
		archiveCopy := *a
		results = append(results, &archiveCopy)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID < results[j].ID
		}
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
	return results, nil
}

func matchesFilter(a *Archive, filter Filter) bool {
	if filter.TenantID != "" && a.TenantID != filter.TenantID {
		return false
	}
	if filter.DataType != "" && a.DataType != filter.DataType {
		return false
	}
	if filter.Status != "" && a.Status != filter.Status {
		return false
	}
	if filter.RetentionPolicyID != "" && a.RetentionPolicyID != filter.RetentionPolicyID {
		return false
	}
	return true
}

// AppendAuditEvent implements Store.
func (s *MemoryStore) AppendAuditEvent(ctx context.Context, event AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	s.auditTrails[event.ArchiveID] = append(s.auditTrails[event.ArchiveID], event)
	return nil
}

// AuditTrail implements Store.
func (s *MemoryStore) AuditTrail(ctx context.Context, archiveID string) ([]AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trail := s.auditTrails[archiveID]
	out := make([]AuditEvent, len(trail))
	copy(out, trail)
	return out, nil
}

// AppendAccessEvent implements Store.
func (s *MemoryStore) AppendAccessEvent(ctx context.Context, event AccessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	s.accessLogs[event.ArchiveID] = append(s.accessLogs[event.ArchiveID], event)
	return nil
}

// AccessLog implements Store.
func (s *MemoryStore) AccessLog(ctx context.Context, archiveID string) ([]AccessEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.accessLogs[archiveID]
	out := make([]AccessEvent, len(log))
	copy(out, log)
	return out, nil
}

// AppendRestoration implements Store.
func (s *MemoryStore) AppendRestoration(ctx context.Context, r Restoration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	s.restorations[r.ArchiveID] = append(s.restorations[r.ArchiveID], r)
	return nil
}

// Restorations implements Store.
func (s *MemoryStore) Restorations(ctx context.Context, archiveID string) ([]Restoration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.restorations[archiveID]
	out := make([]Restoration, len(history))
	copy(out, history)
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

// Size returns the number of archives. Used by tests.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.archives)
}

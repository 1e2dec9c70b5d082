package retention

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryPolicyStore implements the PolicyStore interface using in-memory maps.
// This implementation is intended for testing and single-process deployments.
type MemoryPolicyStore struct {
	policies map[string]*RetentionPolicy
	history  map[string][]*ConfigChange
	mu       sync.RWMutex
}

// NewMemoryPolicyStore creates a new in-memory policy store.
func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{
		policies: make(map[string]*RetentionPolicy),
		history:  make(map[string][]*ConfigChange),
	}
}

// Create persists a new policy.
func (s *MemoryPolicyStore) Create(ctx context.Context, policy *RetentionPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	policyCopy := *policy
	s.policies[policy.ID] = &policyCopy

	return nil
}

// Update rewrites a policy's configuration.
func (s *MemoryPolicyStore) Update(ctx context.Context, policy *RetentionPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.policies[policy.ID]
	if !ok {
		return NewNotFoundError(policy.ID)
	}

	policyCopy := *policy
	// Statistics stay under UpdateStatistics control.
	policyCopy.Statistics = existing.Statistics
	s.policies[policy.ID] = &policyCopy

	return nil
}

// Get returns the policy or a NotFoundError.
func (s *MemoryPolicyStore) Get(ctx context.Context, id string) (*RetentionPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, ok := s.policies[id]
	if !ok {
		return nil, NewNotFoundError(id)
	}

	policyCopy := *policy
	return &policyCopy, nil
}

// List returns policies matching the filter.
func (s *MemoryPolicyStore) List(ctx context.Context, filter PolicyFilter) ([]*RetentionPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*RetentionPolicy
	for _, policy := range s.policies {
		if filter.TenantID != "" && policy.TenantID != filter.TenantID {
			continue
		}
		if filter.DataType != "" && policy.DataType != filter.DataType {
			continue
		}
		if filter.Status != "" && policy.Status != filter.Status {
			continue
		}
		policyCopy := *policy
		results = append(results, &policyCopy)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })

	return results, nil
}

// ListDue returns active policies whose next execution is unset or has passed.
func (s *MemoryPolicyStore) ListDue(ctx context.Context, now time.Time) ([]*RetentionPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*RetentionPolicy
	for _, policy := range s.policies {
		if policy.Status != StatusActive {
			continue
		}
		if !DueForExecution(policy.NextExecution, now) {
			continue
		}
		policyCopy := *policy
		results = append(results, &policyCopy)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })

	return results, nil
}

// UpdateStatistics persists the statistics and next execution after a run.
func (s *MemoryPolicyStore) UpdateStatistics(ctx context.Context, id string, stats Statistics, next *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	policy, ok := s.policies[id]
	if !ok {
		return NewNotFoundError(id)
	}

	policy.Statistics = stats
	policy.NextExecution = next
	policy.UpdatedAt = time.Now()

	return nil
}

// AppendConfigChange adds a row to the policy's configuration history.
func (s *MemoryPolicyStore) AppendConfigChange(ctx context.Context, change *ConfigChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changeCopy := *change
	if changeCopy.ID == "" {
		changeCopy.ID = uuid.New().String()
	}
	s.history[change.PolicyID] = append(s.history[change.PolicyID], &changeCopy)

	return nil
}

// ConfigHistory returns the policy's configuration history, oldest first.
func (s *MemoryPolicyStore) ConfigHistory(ctx context.Context, policyID string) ([]*ConfigChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	changes := s.history[policyID]
	results := make([]*ConfigChange, 0, len(changes))
	for _, change := range changes {
		changeCopy := *change
		results = append(results, &changeCopy)
	}

	return results, nil
}

// Close releases resources held by the store.
func (s *MemoryPolicyStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.policies = make(map[string]*RetentionPolicy)
	s.history = make(map[string][]*ConfigChange)
	return nil
}

// Size returns the number of policies in the store (for testing).
func (s *MemoryPolicyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.policies)
}

// MemoryApprovalStore implements the ApprovalStore interface in memory.
type MemoryApprovalStore struct {
	approvals []*Approval
	mu        sync.Mutex
}

// NewMemoryApprovalStore creates a new in-memory approval store.
func NewMemoryApprovalStore() *MemoryApprovalStore {
	return &MemoryApprovalStore{}
}

// Grant records a new approval.
func (s *MemoryApprovalStore) Grant(ctx context.Context, approval *Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	approvalCopy := *approval
	if approvalCopy.ID == "" {
		approvalCopy.ID = uuid.New().String()
	}
	s.approvals = append(s.approvals, &approvalCopy)

	return nil
}

// Consume marks the oldest unexpired, unused approval for the policy as used.
func (s *MemoryApprovalStore) Consume(ctx context.Context, policyID string, now time.Time) (*Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *Approval
	for _, approval := range s.approvals {
		if approval.PolicyID != policyID || approval.UsedAt != nil {
			continue
		}
		if now.After(approval.ExpiresAt) {
			continue
		}
		if oldest == nil || approval.GrantedAt.Before(oldest.GrantedAt) {
			oldest = approval
		}
	}

	if oldest == nil {
		return nil, nil
	}

	usedAt := now
	oldest.UsedAt = &usedAt

	approvalCopy := *oldest
	return &approvalCopy, nil
}

// Close releases resources held by the store.
func (s *MemoryApprovalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.approvals = nil
	return nil
}

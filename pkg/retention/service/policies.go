package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"custodia-hq/amber/pkg/retention"
)

// CreatePolicy validates and persists a new policy. The first run happens
// on the next scheduler tick: NextExecution starts unset, which ListDue
// treats as due.
func (s *Service) CreatePolicy(ctx context.Context, policy *retention.RetentionPolicy) (*retention.RetentionPolicy, error) {
	if policy == nil {
		return nil, retention.NewConfigurationError("policy", "policy is required")
	}
	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}
	if policy.Status == "" {
		policy.Status = retention.StatusActive
	}
	if err := policy.Validate(s.registry); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	policy.CreatedAt = now
	policy.UpdatedAt = now
	policy.Statistics = retention.Statistics{}
	policy.NextExecution = nil

	if err := s.policies.Create(ctx, policy); err != nil {
		return nil, err
	}

	s.chainAppend(ctx, policy.TenantID, chainRetention, "policy_created", map[string]any{
		"policyId":        policy.ID,
		"tenantId":        policy.TenantID,
		"dataType":        string(policy.DataType),
		"retentionPeriod": policy.RetentionPeriod.String(),
		"createdBy":       policy.CreatedBy,
	})
	s.refreshPolicyGauge(ctx)
	s.logger.Info("retention policy created",
		"policy_id", policy.ID,
		"tenant_id", policy.TenantID,
		"data_type", policy.DataType)
	return policy, nil
}

// UpdatePolicy replaces a policy's configuration, recording one config
// history row per changed section. The policy's scope, creation metadata,
// and accumulated statistics are preserved. The next execution moves only
// when the schedule itself changed.
func (s *Service) UpdatePolicy(ctx context.Context, updated *retention.RetentionPolicy, changedBy string) (*retention.RetentionPolicy, error) {
	if updated == nil {
		return nil, retention.NewConfigurationError("policy", "policy is required")
	}
	existing, err := s.policies.Get(ctx, updated.ID)
	if err != nil {
		return nil, err
	}
	if updated.TenantID != existing.TenantID || updated.DataType != existing.DataType {
		return nil, retention.NewConfigurationError("tenantId", "policy scope cannot change")
	}
	if err := updated.Validate(s.registry); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	changes := diffPolicies(existing, updated, changedBy, now)
	if len(changes) == 0 {
		return existing, nil
	}

	updated.CreatedAt = existing.CreatedAt
	updated.CreatedBy = existing.CreatedBy
	updated.UpdatedAt = now
	updated.Statistics = existing.Statistics
	updated.NextExecution = existing.NextExecution

	fields := make([]string, 0, len(changes))
	for _, change := range changes {
		fields = append(fields, change.Field)
	}
	if contains(fields, "schedule") {
		if next, err := updated.Schedule.NextFrom(now); err == nil {
			updated.NextExecution = &next
		}
	}

	if err := s.policies.Update(ctx, updated); err != nil {
		return nil, err
	}
	for _, change := range changes {
		if err := s.policies.AppendConfigChange(ctx, change); err != nil {
			s.logger.Error("config history append failed", "policy_id", updated.ID, "error", err)
		}
	}

	s.chainAppend(ctx, updated.TenantID, chainRetention, "policy_updated", map[string]any{
		"policyId":  updated.ID,
		"fields":    strings.Join(fields, ","),
		"changedBy": changedBy,
	})
	s.logger.Info("retention policy updated",
		"policy_id", updated.ID,
		"fields", strings.Join(fields, ","),
		"changed_by", changedBy)
	return updated, nil
}

// GetPolicy returns a policy by ID.
func (s *Service) GetPolicy(ctx context.Context, id string) (*retention.RetentionPolicy, error) {
	return s.policies.Get(ctx, id)
}

// ListPolicies returns policies matching the filter.
func (s *Service) ListPolicies(ctx context.Context, filter retention.PolicyFilter) ([]*retention.RetentionPolicy, error) {
	return s.policies.List(ctx, filter)
}

// PolicyHistory returns a policy's configuration changes, oldest first.
func (s *Service) PolicyHistory(ctx context.Context, id string) ([]*retention.ConfigChange, error) {
	if _, err := s.policies.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.policies.ConfigHistory(ctx, id)
}

// SetPolicyStatus flips a policy between active, inactive, and suspended.
// Inactive and suspended policies are never selected by RunDue.
func (s *Service) SetPolicyStatus(ctx context.Context, id string, status retention.Status, changedBy string) error {
	switch status {
	case retention.StatusActive, retention.StatusInactive, retention.StatusSuspended:
	default:
		return retention.NewConfigurationError("status", fmt.Sprintf("unsupported status %q", status))
	}

	existing, err := s.policies.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status == status {
		return nil
	}

	now := time.Now().UTC()
	previous := existing.Status
	existing.Status = status
	existing.UpdatedAt = now
	if err := s.policies.Update(ctx, existing); err != nil {
		return err
	}

	change := &retention.ConfigChange{
		PolicyID:  id,
		ChangedAt: now,
		ChangedBy: changedBy,
		Field:     "status",
		OldValue:  string(previous),
		NewValue:  string(status),
	}
	if err := s.policies.AppendConfigChange(ctx, change); err != nil {
		s.logger.Error("config history append failed", "policy_id", id, "error", err)
	}

	s.chainAppend(ctx, existing.TenantID, chainRetention, "policy_updated", map[string]any{
		"policyId":  id,
		"fields":    "status",
		"oldValue":  string(previous),
		"newValue":  string(status),
		"changedBy": changedBy,
	})
	s.refreshPolicyGauge(ctx)
	s.logger.Info("policy status changed", "policy_id", id, "from", previous, "to", status)
	return nil
}

// PolicyEstimate previews what a run of the policy would touch, without
// touching anything. The counts come from CountOlderThan and the day
// figure from the period's calendar approximation, so both are operator
// guidance rather than selection inputs.
type PolicyEstimate struct {
	PolicyID            string    `json:"policyId"`
	WouldArchive        int64     `json:"wouldArchive"`
	WouldDelete         int64     `json:"wouldDelete"`
	ApproxRetentionDays int       `json:"approxRetentionDays"`
	EstimatedAt         time.Time `json:"estimatedAt"`
}

// EstimatePolicy counts the records a run right now would archive and
// delete.
func (s *Service) EstimatePolicy(ctx context.Context, id string) (*PolicyEstimate, error) {
	policy, err := s.policies.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	store, err := s.registry.Store(policy.DataType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	retentionCutoff, err := policy.RetentionPeriod.CutoffFrom(now)
	if err != nil {
		return nil, err
	}
	wouldDelete, err := store.CountOlderThan(ctx, policy.TenantID, retentionCutoff)
	if err != nil {
		return nil, err
	}

	estimate := &PolicyEstimate{
		PolicyID:            id,
		WouldDelete:         wouldDelete,
		ApproxRetentionDays: policy.RetentionPeriod.ApproxDays(),
		EstimatedAt:         now,
	}

	if policy.Archival.Enabled {
		archiveCutoff, err := policy.Archival.ArchiveAfter.CutoffFrom(now)
		if err != nil {
			return nil, err
		}
		olderThanArchive, err := store.CountOlderThan(ctx, policy.TenantID, archiveCutoff)
		if err != nil {
			return nil, err
		}
		// Records past the retention cutoff are deletion candidates, so
		// only the slice between the two cutoffs would be archived.
		if olderThanArchive > wouldDelete {
			estimate.WouldArchive = olderThanArchive - wouldDelete
		}
	}
	return estimate, nil
}

// GrantApproval records authorization for hard deletion under a policy.
// When the policy names approvers, the grantor must be one of them. A
// non-positive validity defaults to 24 hours.
func (s *Service) GrantApproval(ctx context.Context, policyID, approver string, validFor time.Duration) (*retention.Approval, error) {
	if approver == "" {
		return nil, retention.NewConfigurationError("approver", "approver is required")
	}
	policy, err := s.policies.Get(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if len(policy.Deletion.Approvers) > 0 && !contains(policy.Deletion.Approvers, approver) {
		return nil, retention.NewConfigurationError("approver",
			fmt.Sprintf("%q is not an approver for policy %s", approver, policyID))
	}
	if validFor <= 0 {
		validFor = 24 * time.Hour
	}

	now := time.Now().UTC()
	approval := &retention.Approval{
		ID:        uuid.New().String(),
		PolicyID:  policyID,
		Approver:  approver,
		GrantedAt: now,
		ExpiresAt: now.Add(validFor),
	}
	if err := s.approvals.Grant(ctx, approval); err != nil {
		return nil, err
	}

	s.chainAppend(ctx, policy.TenantID, chainRetention, "approval_granted", map[string]any{
		"policyId":  policyID,
		"approver":  approver,
		"expiresAt": approval.ExpiresAt.Format(time.RFC3339),
	})
	s.logger.Info("deletion approval granted",
		"policy_id", policyID,
		"approver", approver,
		"expires_at", approval.ExpiresAt)
	return approval, nil
}

// diffPolicies compares the two configurations section by section and
// returns one change row per section that differs.
func diffPolicies(oldPolicy, newPolicy *retention.RetentionPolicy, changedBy string, at time.Time) []*retention.ConfigChange {
	var changes []*retention.ConfigChange
	add := func(field, oldValue, newValue string) {
		if oldValue == newValue {
			return
		}
		changes = append(changes, &retention.ConfigChange{
			PolicyID:  oldPolicy.ID,
			ChangedAt: at,
			ChangedBy: changedBy,
			Field:     field,
			OldValue:  oldValue,
			NewValue:  newValue,
		})
	}

	add("retentionPeriod", oldPolicy.RetentionPeriod.String(), newPolicy.RetentionPeriod.String())
	add("archival", jsonString(oldPolicy.Archival), jsonString(newPolicy.Archival))
	add("deletion", jsonString(oldPolicy.Deletion), jsonString(newPolicy.Deletion))
	add("legal", jsonString(oldPolicy.Legal), jsonString(newPolicy.Legal))
	add("schedule", jsonString(oldPolicy.Schedule), jsonString(newPolicy.Schedule))
	add("status", string(oldPolicy.Status), string(newPolicy.Status))
	return changes
}

func jsonString(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

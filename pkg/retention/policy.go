package retention

import (
	"context"
	"fmt"
	"time"

	"custodia-hq/amber/pkg/datastore"
)

// Status is the lifecycle state of a retention policy.
type Status string

// Policy statuses. Only active policies are picked up by scheduled runs.
const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// RetentionPolicy binds a (tenant, data type) pair to retention rules.
type RetentionPolicy struct {
	ID       string             `yaml:"id" json:"id"`
	TenantID string             `yaml:"tenantId" json:"tenantId"`
	DataType datastore.DataType `yaml:"dataType" json:"dataType"`

	// RetentionPeriod is how long records are kept before deletion.
	RetentionPeriod Period `yaml:"retentionPeriod" json:"retentionPeriod"`

	Archival Archival          `yaml:"archival" json:"archival"`
	Deletion Deletion          `yaml:"deletion" json:"deletion"`
	Legal    Legal             `yaml:"legal" json:"legal"`
	Schedule ExecutionSchedule `yaml:"schedule" json:"schedule"`

	Statistics Statistics `yaml:"-" json:"statistics"`

	Status        Status     `yaml:"status" json:"status"`
	NextExecution *time.Time `yaml:"-" json:"nextExecution,omitempty"`

	CreatedAt time.Time `yaml:"-" json:"createdAt"`
	UpdatedAt time.Time `yaml:"-" json:"updatedAt"`
	CreatedBy string    `yaml:"createdBy" json:"createdBy"`
}

// Archival configures the archive-before-delete window.
type Archival struct {
	// Enabled turns archival on. When off, aged records are deleted
	// without being copied anywhere.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// ArchiveAfter is the age at which records become eligible for
	// archival. Must be shorter than the retention period.
	ArchiveAfter Period `yaml:"archiveAfter" json:"archiveAfter"`

	// Location is a label for where archives are stored ("local", a
	// bucket name, etc.). Recorded on each archive.
	Location string `yaml:"location" json:"location"`

	Compression Compression `yaml:"compression" json:"compression"`
	Encryption  Encryption  `yaml:"encryption" json:"encryption"`
}

// Compression configures the archive compression stage.
type Compression struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Algorithm string `yaml:"algorithm" json:"algorithm"`
}

// Encryption configures the archive encryption stage.
type Encryption struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Algorithm string `yaml:"algorithm" json:"algorithm"`
}

// Deletion configures how aged records are removed.
type Deletion struct {
	// SoftDelete marks records deleted in place instead of removing them.
	SoftDelete bool `yaml:"softDelete" json:"softDelete"`

	// HardDeleteAfter schedules physical removal of soft-deleted records
	// (and of archives) after this additional period. Zero means never.
	HardDeleteAfter Period `yaml:"hardDeleteAfter" json:"hardDeleteAfter"`

	// RequireApproval gates hard deletion on a recorded approval. Without
	// a valid approval the run downgrades to soft deletion.
	RequireApproval bool `yaml:"requireApproval" json:"requireApproval"`

	// Approvers lists principals allowed to approve hard deletion.
	Approvers []string `yaml:"approvers" json:"approvers,omitempty"`
}

// Legal captures jurisdictional retention bounds for compliance reporting.
type Legal struct {
	// MinRetention is the shortest retention the policy may configure.
	MinRetention Period `yaml:"minRetention" json:"minRetention"`

	// MaxRetention is the longest retention the policy may configure.
	MaxRetention Period `yaml:"maxRetention" json:"maxRetention"`

	Jurisdiction string `yaml:"jurisdiction" json:"jurisdiction"`
	Framework    string `yaml:"framework" json:"framework"`
}

// ConfigChange is one entry in a policy's append-only configuration history.
type ConfigChange struct {
	ID        string    `json:"id"`
	PolicyID  string    `json:"policyId"`
	ChangedAt time.Time `json:"changedAt"`
	ChangedBy string    `json:"changedBy"`
	Field     string    `json:"field"`
	OldValue  string    `json:"oldValue"`
	NewValue  string    `json:"newValue"`
}

// Validate checks the policy against a registry of known data types.
//
// Legal bounds are compared on approximate day counts: the bounds exist for
// reporting and guardrails, not for record selection.
func (p *RetentionPolicy) Validate(registry datastore.Registry) error {
	if p.TenantID == "" {
		return NewConfigurationError("tenantId", "must not be empty")
	}
	if p.DataType == "" {
		return NewConfigurationError("dataType", "must not be empty")
	}
	if registry != nil {
		if _, err := registry.Store(p.DataType); err != nil {
			return NewConfigurationError("dataType",
				fmt.Sprintf("unknown data type %q", p.DataType))
		}
	}

	if err := p.RetentionPeriod.Validate(); err != nil {
		return err
	}

	if p.Archival.Enabled {
		if err := p.Archival.ArchiveAfter.Validate(); err != nil {
			return err
		}
		if p.Archival.ArchiveAfter.ApproxDays() >= p.RetentionPeriod.ApproxDays() {
			return NewConfigurationError("archival.archiveAfter",
				"must be shorter than the retention period")
		}
	}

	if !p.Deletion.HardDeleteAfter.IsZero() {
		if err := p.Deletion.HardDeleteAfter.Validate(); err != nil {
			return err
		}
	}

	if !p.Legal.MinRetention.IsZero() {
		if err := p.Legal.MinRetention.Validate(); err != nil {
			return err
		}
		if p.RetentionPeriod.ApproxDays() < p.Legal.MinRetention.ApproxDays() {
			return NewConfigurationError("retentionPeriod",
				fmt.Sprintf("below the legal minimum of %s", p.Legal.MinRetention))
		}
	}
	if !p.Legal.MaxRetention.IsZero() {
		if err := p.Legal.MaxRetention.Validate(); err != nil {
			return err
		}
		if p.RetentionPeriod.ApproxDays() > p.Legal.MaxRetention.ApproxDays() {
			return NewConfigurationError("retentionPeriod",
				fmt.Sprintf("above the legal maximum of %s", p.Legal.MaxRetention))
		}
	}

	if err := p.Schedule.Validate(); err != nil {
		return err
	}

	switch p.Status {
	case StatusActive, StatusInactive, StatusSuspended:
	case "":
		// Status defaulted by the service on create.
	default:
		return NewConfigurationError("status",
			fmt.Sprintf("unsupported status %q", p.Status))
	}

	return nil
}

// PolicyFilter narrows List results. Zero fields match everything.
type PolicyFilter struct {
	TenantID string
	DataType datastore.DataType
	Status   Status
}

// PolicyStore is the persistence contract for retention policies.
type PolicyStore interface {
	// Create persists a new policy.
	Create(ctx context.Context, policy *RetentionPolicy) error

	// Update rewrites a policy's configuration. Statistics are not
	// touched; use UpdateStatistics after runs.
	Update(ctx context.Context, policy *RetentionPolicy) error

	// Get returns the policy or a NotFoundError.
	Get(ctx context.Context, id string) (*RetentionPolicy, error)

	// List returns policies matching the filter.
	List(ctx context.Context, filter PolicyFilter) ([]*RetentionPolicy, error)

	// ListDue returns active policies whose next execution is unset or has
	// passed.
	ListDue(ctx context.Context, now time.Time) ([]*RetentionPolicy, error)

	// UpdateStatistics persists the statistics and next execution after a run.
	UpdateStatistics(ctx context.Context, id string, stats Statistics, next *time.Time) error

	// AppendConfigChange adds a row to the policy's configuration history.
	AppendConfigChange(ctx context.Context, change *ConfigChange) error

	// ConfigHistory returns the policy's configuration history, oldest first.
	ConfigHistory(ctx context.Context, policyID string) ([]*ConfigChange, error)

	// Close releases resources held by the store.
	Close() error
}

// Approval is a recorded authorization for hard deletion under a policy.
type Approval struct {
	ID        string     `json:"id"`
	PolicyID  string     `json:"policyId"`
	Approver  string     `json:"approver"`
	GrantedAt time.Time  `json:"grantedAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
}

// ApprovalStore is the persistence contract for deletion approvals.
type ApprovalStore interface {
	// Grant records a new approval.
	Grant(ctx context.Context, approval *Approval) error

	// Consume marks the oldest unexpired, unused approval for the policy
	// as used and returns it. Returns (nil, nil) when none exists.
	Consume(ctx context.Context, policyID string, now time.Time) (*Approval, error)

	// Close releases resources held by the store.
	Close() error
}

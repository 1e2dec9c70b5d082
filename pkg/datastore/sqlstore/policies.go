package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"custodia-hq/amber/pkg/datastore"
	"custodia-hq/amber/pkg/retention"
)

// PolicyStore implements retention.PolicyStore on the shared DB handle.
type PolicyStore struct {
	db *DB
}

// NewPolicyStore creates a SQL-backed policy store.
func NewPolicyStore(db *DB) *PolicyStore {
	return &PolicyStore{db: db}
}

// policySections holds the JSON-encoded structured columns of a policy row.
type policySections struct {
	retentionPeriod []byte
	archival        []byte
	deletion        []byte
	legal           []byte
	schedule        []byte
	statistics      []byte
}

func marshalPolicySections(policy *retention.RetentionPolicy) (*policySections, error) {
	s := &policySections{}
	for _, field := range []struct {
		name string
		dst  *[]byte
		src  any
	}{
		{"retentionPeriod", &s.retentionPeriod, policy.RetentionPeriod},
		{"archival", &s.archival, policy.Archival},
		{"deletion", &s.deletion, policy.Deletion},
		{"legal", &s.legal, policy.Legal},
		{"schedule", &s.schedule, policy.Schedule},
		{"statistics", &s.statistics, policy.Statistics},
	} {
		data, err := json.Marshal(field.src)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", field.name, err)
		}
		*field.dst = data
	}
	return s, nil
}

// Create persists a new policy.
func (s *PolicyStore) Create(ctx context.Context, policy *retention.RetentionPolicy) error {
	sections, err := marshalPolicySections(policy)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "create_policy", err)
	}

	query := `
		INSERT INTO retention_policies (
			id, tenant_id, data_type,
			retention_period, archival, deletion, legal, schedule, statistics,
			status, next_execution, created_at, updated_at, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.db.ExecContext(ctx, s.db.rebind(query),
		policy.ID, policy.TenantID, string(policy.DataType),
		string(sections.retentionPeriod), string(sections.archival),
		string(sections.deletion), string(sections.legal),
		string(sections.schedule), string(sections.statistics),
		string(policy.Status), toNanosPtr(policy.NextExecution),
		toNanos(policy.CreatedAt), toNanos(policy.UpdatedAt), policy.CreatedBy,
	)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "create_policy", err)
	}

	return nil
}

// Update rewrites a policy's configuration. The statistics column is left
// alone; it only moves through UpdateStatistics.
func (s *PolicyStore) Update(ctx context.Context, policy *retention.RetentionPolicy) error {
	sections, err := marshalPolicySections(policy)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "update_policy", err)
	}

	query := `
		UPDATE retention_policies
		SET tenant_id = ?, data_type = ?,
		    retention_period = ?, archival = ?, deletion = ?, legal = ?, schedule = ?,
		    status = ?, next_execution = ?, updated_at = ?, created_by = ?
		WHERE id = ?
	`

	result, err := s.db.db.ExecContext(ctx, s.db.rebind(query),
		policy.TenantID, string(policy.DataType),
		string(sections.retentionPeriod), string(sections.archival),
		string(sections.deletion), string(sections.legal), string(sections.schedule),
		string(policy.Status), toNanosPtr(policy.NextExecution),
		toNanos(policy.UpdatedAt), policy.CreatedBy,
		policy.ID,
	)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "update_policy", err)
	}

	affected, err := rowsAffected(s.db.driver, "update_policy", result)
	if err != nil {
		return err
	}
	if affected == 0 {
		return retention.NewNotFoundError(policy.ID)
	}

	return nil
}

// Get returns the policy or a NotFoundError.
func (s *PolicyStore) Get(ctx context.Context, id string) (*retention.RetentionPolicy, error) {
	query := policyColumns + ` FROM retention_policies WHERE id = ?`

	rows, err := s.db.db.QueryContext(ctx, s.db.rebind(query), id)
	if err != nil {
		return nil, datastore.NewStorageError(s.db.driver, "get_policy", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, datastore.NewStorageError(s.db.driver, "get_policy", err)
		}
		return nil, retention.NewNotFoundError(id)
	}

	policy, err := scanPolicy(rows)
	if err != nil {
		return nil, datastore.NewStorageError(s.db.driver, "get_policy", err)
	}

	return policy, nil
}

// List returns policies matching the filter, ordered by ID.
func (s *PolicyStore) List(ctx context.Context, filter retention.PolicyFilter) ([]*retention.RetentionPolicy, error) {
	query := policyColumns + ` FROM retention_policies`
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
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
			continue
		}
		query += " AND " + cond
	}
	query += " ORDER BY id"

	return s.queryPolicies(ctx, "list_policies", query, args...)
}

// ListDue returns active policies whose next execution is unset or has
// passed, ordered by ID.
func (s *PolicyStore) ListDue(ctx context.Context, now time.Time) ([]*retention.RetentionPolicy, error) {
	query := policyColumns + `
		FROM retention_policies
		WHERE status = ?
		  AND (next_execution IS NULL OR next_execution <= ?)
		ORDER BY id
	`

	return s.queryPolicies(ctx, "list_due_policies", query,
		string(retention.StatusActive), toNanos(now))
}

// UpdateStatistics persists the statistics and next execution after a run.
func (s *PolicyStore) UpdateStatistics(ctx context.Context, id string, stats retention.Statistics, next *time.Time) error {
	statistics, err := json.Marshal(stats)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "update_statistics", err)
	}

	query := `
		UPDATE retention_policies
		SET statistics = ?, next_execution = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.db.ExecContext(ctx, s.db.rebind(query),
		string(statistics), toNanosPtr(next), time.Now().UnixNano(), id)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "update_statistics", err)
	}

	affected, err := rowsAffected(s.db.driver, "update_statistics", result)
	if err != nil {
		return err
	}
	if affected == 0 {
		return retention.NewNotFoundError(id)
	}

	return nil
}

// AppendConfigChange adds a row to the policy's configuration history.
func (s *PolicyStore) AppendConfigChange(ctx context.Context, change *retention.ConfigChange) error {
	id := change.ID
	if id == "" {
		id = uuid.New().String()
	}

	query := `
		INSERT INTO policy_config_history (
			id, policy_id, changed_at, changed_by, field, old_value, new_value
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.db.ExecContext(ctx, s.db.rebind(query),
		id, change.PolicyID, toNanos(change.ChangedAt), change.ChangedBy,
		change.Field, change.OldValue, change.NewValue,
	)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "append_config_change", err)
	}

	return nil
}

// ConfigHistory returns the policy's configuration history, oldest first.
func (s *PolicyStore) ConfigHistory(ctx context.Context, policyID string) ([]*retention.ConfigChange, error) {
	query := `
		SELECT id, policy_id, changed_at, changed_by, field, old_value, new_value
		FROM policy_config_history
		WHERE policy_id = ?
		ORDER BY changed_at, id
	`

	rows, err := s.db.db.QueryContext(ctx, s.db.rebind(query), policyID)
	if err != nil {
		return nil, datastore.NewStorageError(s.db.driver, "config_history", err)
	}
	defer rows.Close()

	changes := []*retention.ConfigChange{}
	for rows.Next() {
		var (
			change    retention.ConfigChange
			changedAt int64
		)
		err := rows.Scan(&change.ID, &change.PolicyID, &changedAt,
			&change.ChangedBy, &change.Field, &change.OldValue, &change.NewValue)
		if err != nil {
			return nil, datastore.NewStorageError(s.db.driver, "config_history", err)
		}
		change.ChangedAt = fromNanos(changedAt)
		changes = append(changes, &change)
	}

	if err := rows.Err(); err != nil {
		return nil, datastore.NewStorageError(s.db.driver, "config_history", err)
	}

	return changes, nil
}

// Close is a no-op: the shared DB handle is closed by its owner.
func (s *PolicyStore) Close() error {
	return nil
}

// policyColumns is the SELECT list matching scanPolicy.
const policyColumns = `
	SELECT id, tenant_id, data_type,
	       retention_period, archival, deletion, legal, schedule, statistics,
	       status, next_execution, created_at, updated_at, created_by
`

func (s *PolicyStore) queryPolicies(ctx context.Context, operation, query string, args ...any) ([]*retention.RetentionPolicy, error) {
	rows, err := s.db.db.QueryContext(ctx, s.db.rebind(query), args...)
	if err != nil {
		return nil, datastore.NewStorageError(s.db.driver, operation, err)
	}
	defer rows.Close()

	var policies []*retention.RetentionPolicy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, datastore.NewStorageError(s.db.driver, operation, err)
		}
		policies = append(policies, policy)
	}

	if err := rows.Err(); err != nil {
		return nil, datastore.NewStorageError(s.db.driver, operation, err)
	}

	return policies, nil
}

func scanPolicy(rows *sql.Rows) (*retention.RetentionPolicy, error) {
	var (
		policy          retention.RetentionPolicy
		dataType        string
		retentionPeriod []byte
		archival        []byte
		deletion        []byte
		legal           []byte
		schedule        []byte
		statistics      []byte
		status          string
		nextExecution   sql.NullInt64
		createdAt       int64
		updatedAt       int64
	)

	err := rows.Scan(&policy.ID, &policy.TenantID, &dataType,
		&retentionPeriod, &archival, &deletion, &legal, &schedule, &statistics,
		&status, &nextExecution, &createdAt, &updatedAt, &policy.CreatedBy)
	if err != nil {
		return nil, err
	}

	for _, field := range []struct {
		name string
		data []byte
		dst  any
	}{
		{"retentionPeriod", retentionPeriod, &policy.RetentionPeriod},
		{"archival", archival, &policy.Archival},
		{"deletion", deletion, &policy.Deletion},
		{"legal", legal, &policy.Legal},
		{"schedule", schedule, &policy.Schedule},
		{"statistics", statistics, &policy.Statistics},
	} {
		if err := json.Unmarshal(field.data, field.dst); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", field.name, err)
		}
	}

	policy.DataType = datastore.DataType(dataType)
	policy.Status = retention.Status(status)
	policy.NextExecution = fromNanosPtr(nextExecution)
	policy.CreatedAt = fromNanos(createdAt)
	policy.UpdatedAt = fromNanos(updatedAt)

	return &policy, nil
}

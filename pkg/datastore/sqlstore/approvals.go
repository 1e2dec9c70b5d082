package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"custodia-hq/amber/pkg/datastore"
	"custodia-hq/amber/pkg/retention"
)

// ApprovalStore implements retention.ApprovalStore on the shared DB handle.
type ApprovalStore struct {
	db *DB
}

// NewApprovalStore creates a SQL-backed approval store.
func NewApprovalStore(db *DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

// Grant records a new approval.
func (s *ApprovalStore) Grant(ctx context.Context, approval *retention.Approval) error {
	id := approval.ID
	if id == "" {
		id = uuid.New().String()
	}

	query := `
		INSERT INTO deletion_approvals (id, policy_id, approver, granted_at, expires_at, used_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.db.ExecContext(ctx, s.db.rebind(query),
		id, approval.PolicyID, approval.Approver,
		toNanos(approval.GrantedAt), toNanos(approval.ExpiresAt),
		toNanosPtr(approval.UsedAt),
	)
	if err != nil {
		return datastore.NewStorageError(s.db.driver, "grant_approval", err)
	}

	return nil
}

// Consume marks the oldest unexpired, unused approval for the policy as used
// and returns it. Returns (nil, nil) when none exists.
func (s *ApprovalStore) Consume(ctx context.Context, policyID string, now time.Time) (*retention.Approval, error) {
	selectQuery := `
		SELECT id, policy_id, approver, granted_at, expires_at
		FROM deletion_approvals
		WHERE policy_id = ? AND used_at IS NULL AND expires_at >= ?
		ORDER BY granted_at, id
		LIMIT 1
	`
	updateQuery := `
		UPDATE deletion_approvals SET used_at = ? WHERE id = ? AND used_at IS NULL
	`

	// The lease layer serializes runs per policy, so the select and the
	// guarded update rarely race. The retry covers a manual grant being
	// consumed concurrently.
	for attempt := 0; attempt < 3; attempt++ {
		var (
			approval  retention.Approval
			grantedAt int64
			expiresAt int64
		)
		err := s.db.db.QueryRowContext(ctx, s.db.rebind(selectQuery),
			policyID, toNanos(now)).Scan(
			&approval.ID, &approval.PolicyID, &approval.Approver, &grantedAt, &expiresAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, datastore.NewStorageError(s.db.driver, "consume_approval", err)
		}

		usedAt := now
		result, err := s.db.db.ExecContext(ctx, s.db.rebind(updateQuery),
			toNanos(usedAt), approval.ID)
		if err != nil {
			return nil, datastore.NewStorageError(s.db.driver, "consume_approval", err)
		}

		affected, err := rowsAffected(s.db.driver, "consume_approval", result)
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			continue
		}

		approval.GrantedAt = fromNanos(grantedAt)
		approval.ExpiresAt = fromNanos(expiresAt)
		approval.UsedAt = &usedAt
		return &approval, nil
	}

	return nil, datastore.NewStorageError(s.db.driver, "consume_approval",
		errors.New("lost the guarded update three times in a row"))
}

// Close is a no-op: the shared DB handle is closed by its owner.
func (s *ApprovalStore) Close() error {
	return nil
}

package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"custodia-hq/amber/pkg/bus"
	"custodia-hq/amber/pkg/datastore"
	"custodia-hq/amber/pkg/lease"
	"custodia-hq/amber/pkg/retention"
)

var tracer = otel.Tracer("amber-retention")

// RunSummary reports what a single policy run did.
type RunSummary struct {
	PolicyID string             `json:"policyId"`
	TenantID string             `json:"tenantId"`
	DataType datastore.DataType `json:"dataType"`

	// Skipped is true when the run's lease was held elsewhere and nothing
	// was executed. No other field is meaningful then.
	Skipped bool `json:"skipped,omitempty"`

	// Processed counts records the run acted on: archived plus deleted.
	Processed int64 `json:"processed"`
	Archived  int64 `json:"archived"`
	Deleted   int64 `json:"deleted"`

	// Purged counts soft-deleted records removed for good this run. They
	// were counted as deleted when their mark was placed, so they do not
	// feed Processed again.
	Purged int64 `json:"purged,omitempty"`

	// SweptArchives counts archives removed by the scheduled-deletion
	// sweep.
	SweptArchives int64 `json:"sweptArchives,omitempty"`

	// ApprovalMissing is true when a phase needed a deletion approval and
	// none was on file.
	ApprovalMissing bool `json:"approvalMissing,omitempty"`

	Duration time.Duration `json:"duration"`
}

// policyRun carries per-run state between phases.
type policyRun struct {
	policy          *retention.RetentionPolicy
	store           datastore.EntityStore
	now             time.Time
	retentionCutoff time.Time
	summary         *RunSummary

	// approval is resolved lazily and consumed at most once per run; it
	// gates every hard-removal phase behind the same grant.
	approval        *retention.Approval
	approvalChecked bool
}

// RunDue executes every policy whose next execution has arrived. A failing
// policy is logged and recorded in its own statistics; it never stops the
// rest of the batch.
func (s *Service) RunDue(ctx context.Context) ([]*RunSummary, error) {
	now := time.Now().UTC()

	due, err := s.policies.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}
	s.logger.Info("retention run starting", "due_policies", len(due))

	summaries := make([]*RunSummary, 0, len(due))
	for _, policy := range due {
		summary, err := s.runPolicy(ctx, policy, now)
		if err != nil {
			s.logger.Error("policy run failed",
				"policy_id", policy.ID,
				"tenant_id", policy.TenantID,
				"data_type", policy.DataType,
				"error", err)
		}
		if summary != nil {
			summaries = append(summaries, summary)
		}
	}

	s.refreshPolicyGauge(ctx)
	return summaries, nil
}

// ExecutePolicy runs a single policy immediately, regardless of its
// schedule or status. Unlike RunDue, execution errors propagate to the
// caller.
func (s *Service) ExecutePolicy(ctx context.Context, policyID string) (*RunSummary, error) {
	policy, err := s.policies.Get(ctx, policyID)
	if err != nil {
		return nil, err
	}
	return s.runPolicy(ctx, policy, time.Now().UTC())
}

func (s *Service) runPolicy(ctx context.Context, policy *retention.RetentionPolicy, now time.Time) (*RunSummary, error) {
	ctx, span := tracer.Start(ctx, "retention.run_policy", trace.WithAttributes(
		attribute.String("policy.id", policy.ID),
		attribute.String("tenant.id", policy.TenantID),
		attribute.String("data.type", string(policy.DataType)),
	))
	defer span.End()

	summary := &RunSummary{
		PolicyID: policy.ID,
		TenantID: policy.TenantID,
		DataType: policy.DataType,
	}

	release, acquired, err := s.locker.Acquire(ctx, lease.Key(policy.TenantID, string(policy.DataType)), s.config.LeaseTTL)
	if err != nil {
		return nil, retention.NewExecutionError(policy.ID, "lease", err)
	}
	if !acquired {
		// Another run holds this scope. Leave statistics and the next
		// execution untouched so the policy is retried on the next tick.
		summary.Skipped = true
		s.logger.Warn("policy run skipped, lease held elsewhere",
			"policy_id", policy.ID,
			"tenant_id", policy.TenantID,
			"data_type", policy.DataType)
		return summary, nil
	}
	defer release()

	started := time.Now()
	runErr := s.execute(ctx, policy, now, summary)
	summary.Duration = time.Since(started)

	stats := policy.Statistics
	stats.Apply(retention.RunOutcome{
		Processed: summary.Processed,
		Archived:  summary.Archived,
		Deleted:   summary.Deleted,
		Duration:  summary.Duration,
		Err:       runErr,
	}, now)

	var next *time.Time
	if n, err := policy.Schedule.NextFrom(now); err == nil {
		next = &n
	} else {
		s.logger.Error("next execution not schedulable", "policy_id", policy.ID, "error", err)
	}

	if err := s.policies.UpdateStatistics(ctx, policy.ID, stats, next); err != nil {
		s.logger.Error("statistics update failed", "policy_id", policy.ID, "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	event := map[string]any{
		"policyId":   policy.ID,
		"tenantId":   policy.TenantID,
		"dataType":   string(policy.DataType),
		"processed":  summary.Processed,
		"archived":   summary.Archived,
		"deleted":    summary.Deleted,
		"purged":     summary.Purged,
		"durationMs": summary.Duration.Milliseconds(),
	}
	if summary.ApprovalMissing {
		event["approvalMissing"] = true
	}
	if runErr != nil {
		event["error"] = runErr.Error()
	}
	s.chainAppend(ctx, policy.TenantID, chainRetention, "policy_executed", event)
	s.publish(ctx, policy.TenantID, bus.TopicPolicyExecuted, event)
	s.metrics.RecordPolicyRun(policy.TenantID, string(policy.DataType), runErr == nil)
	s.metrics.RecordRunDuration(string(policy.DataType), summary.Duration.Seconds())

	if runErr != nil {
		span.RecordError(runErr)
		return summary, runErr
	}

	s.logger.Info("policy run completed",
		"policy_id", policy.ID,
		"processed", summary.Processed,
		"archived", summary.Archived,
		"deleted", summary.Deleted,
		"duration", summary.Duration)
	return summary, nil
}

// execute runs the phases of one policy in order. Archival failures abort
// the run before any deletion: removing records whose archive copy never
// became durable would lose data.
func (s *Service) execute(ctx context.Context, policy *retention.RetentionPolicy, now time.Time, summary *RunSummary) error {
	store, err := s.registry.Store(policy.DataType)
	if err != nil {
		return retention.NewExecutionError(policy.ID, "resolve_store", err)
	}

	retentionCutoff, err := policy.RetentionPeriod.CutoffFrom(now)
	if err != nil {
		return retention.NewExecutionError(policy.ID, "cutoff", err)
	}

	run := &policyRun{
		policy:          policy,
		store:           store,
		now:             now,
		retentionCutoff: retentionCutoff,
		summary:         summary,
	}

	if policy.Archival.Enabled {
		if err := s.archivePhase(ctx, run); err != nil {
			return err
		}
	}
	if err := s.deletePhase(ctx, run); err != nil {
		return err
	}
	if err := s.purgePhase(ctx, run); err != nil {
		return err
	}
	s.sweepPhase(ctx, run)
	return nil
}

// consumeApproval resolves the run's deletion approval at most once. Every
// phase that permanently removes data shares the same grant.
func (s *Service) consumeApproval(ctx context.Context, run *policyRun) (*retention.Approval, error) {
	if run.approvalChecked {
		return run.approval, nil
	}
	run.approvalChecked = true

	approval, err := s.approvals.Consume(ctx, run.policy.ID, run.now)
	if err != nil {
		return nil, err
	}
	run.approval = approval
	if approval == nil {
		run.summary.ApprovalMissing = true
	} else {
		s.logger.Info("deletion approval consumed",
			"policy_id", run.policy.ID,
			"approver", approval.Approver)
	}
	return approval, nil
}

// refreshPolicyGauge recounts policies per status.
func (s *Service) refreshPolicyGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	for _, status := range []retention.Status{retention.StatusActive, retention.StatusInactive, retention.StatusSuspended} {
		policies, err := s.policies.List(ctx, retention.PolicyFilter{Status: status})
		if err != nil {
			return
		}
		s.metrics.SetPolicies(string(status), len(policies))
	}
}

// Package metrics exposes Prometheus metrics for retention runs, the
// archive pipeline, and the audit chain.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus collectors for the retention service.
//
// A nil *Metrics is valid and records nothing, so components can be
// wired without collectors in tests.
type Metrics struct {
	// Policy execution
	policyRuns  *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	policies    *prometheus.GaugeVec

	// Record movement
	recordsProcessed *prometheus.CounterVec

	// Archive pipeline
	archiveBytes      *prometheus.HistogramVec
	archiveOperations *prometheus.CounterVec

	// Audit chain
	chainAppends       *prometheus.CounterVec
	chainVerifications *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with Prometheus collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		policyRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amber_retention_policy_runs_total",
				Help: "Total number of retention policy executions",
			},
			[]string{"tenant_id", "data_type", "result"},
		),

		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "amber_retention_run_duration_seconds",
				Help:    "Duration of policy executions in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
			},
			[]string{"data_type"},
		),

		policies: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "amber_retention_policies",
				Help: "Number of retention policies by status",
			},
			[]string{"status"},
		),

		recordsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amber_retention_records_processed_total",
				Help: "Total number of records moved by retention actions",
			},
			[]string{"tenant_id", "data_type", "action"},
		),

		archiveBytes: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "amber_archive_blob_bytes",
				Help:    "Archive blob sizes in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB to ~256MiB
			},
			[]string{"data_type", "stage"},
		),

		archiveOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amber_archive_operations_total",
				Help: "Total number of archive operations",
			},
			[]string{"operation", "result"},
		),

		chainAppends: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amber_audit_chain_appends_total",
				Help: "Total number of audit chain entries appended",
			},
			[]string{"category"},
		),

		chainVerifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amber_audit_chain_verifications_total",
				Help: "Total number of audit chain verifications",
			},
			[]string{"category", "result"},
		),
	}
}

// RecordPolicyRun records one policy execution.
func (m *Metrics) RecordPolicyRun(tenantID, dataType string, success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.policyRuns.WithLabelValues(tenantID, dataType, result).Inc()
}

// RecordRunDuration records how long a policy execution took.
func (m *Metrics) RecordRunDuration(dataType string, seconds float64) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(dataType).Observe(seconds)
}

// SetPolicies sets the policy count gauge for a status.
func (m *Metrics) SetPolicies(status string, count int) {
	if m == nil {
		return
	}
	m.policies.WithLabelValues(status).Set(float64(count))
}

// RecordRecordsProcessed adds to the per-action record counter.
func (m *Metrics) RecordRecordsProcessed(tenantID, dataType, action string, count int64) {
	if m == nil || count == 0 {
		return
	}
	m.recordsProcessed.WithLabelValues(tenantID, dataType, action).Add(float64(count))
}

// RecordArchiveBytes records a blob size at a pipeline stage.
func (m *Metrics) RecordArchiveBytes(dataType, stage string, bytes int64) {
	if m == nil {
		return
	}
	m.archiveBytes.WithLabelValues(dataType, stage).Observe(float64(bytes))
}

// RecordArchiveOperation records one archive operation.
func (m *Metrics) RecordArchiveOperation(operation string, success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.archiveOperations.WithLabelValues(operation, result).Inc()
}

// RecordChainAppend records one audit chain append.
func (m *Metrics) RecordChainAppend(category string) {
	if m == nil {
		return
	}
	m.chainAppends.WithLabelValues(category).Inc()
}

// RecordChainVerification records one audit chain verification.
func (m *Metrics) RecordChainVerification(category string, valid bool) {
	if m == nil {
		return
	}
	result := "valid"
	if !valid {
		result = "invalid"
	}
	m.chainVerifications.WithLabelValues(category, result).Inc()
}

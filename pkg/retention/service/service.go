// Package service orchestrates retention runs. It selects due policies,
// drives the archive-then-delete pipeline per policy under a per-scope
// lease, sweeps archives whose scheduled deletion has come due, and
// records everything it does on the audit chain and the event bus.
package service

import (
	"fmt"
	"log/slog"
	"time"

	"custodia-hq/amber/pkg/archive"
	"custodia-hq/amber/pkg/audit"
	"custodia-hq/amber/pkg/bus"
	"custodia-hq/amber/pkg/datastore"
	"custodia-hq/amber/pkg/lease"
	"custodia-hq/amber/pkg/retention"
	"custodia-hq/amber/pkg/telemetry/metrics"
)

// Chain categories used by the service. Policy lifecycle and run events go
// on "retention"; archive lifecycle events go on "archives".
const (
	chainRetention = "retention"
	chainArchives  = "archives"
)

// Config contains configuration for the retention service.
type Config struct {
	// Schedule is the cron expression driving scheduled retention runs.
	Schedule string

	// Actor is recorded as the acting principal on deletion marks and
	// archive audit rows written by scheduled runs.
	Actor string

	// LeaseTTL bounds how long a policy run may hold its per-scope lease.
	LeaseTTL time.Duration

	// Location labels where new archives are stored when the policy does
	// not name a location of its own.
	Location string
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() *Config {
	return &Config{
		Schedule: "*/15 * * * *",
		Actor:    "retention-service",
		LeaseTTL: 10 * time.Minute,
		Location: "local",
	}
}

// Deps carries the collaborators the service works against. Registry
// through Chain are required. Locker defaults to an in-process locker,
// Bus and Metrics may be nil.
type Deps struct {
	Registry  datastore.Registry
	Policies  retention.PolicyStore
	Approvals retention.ApprovalStore
	Archives  archive.Store
	Blobs     archive.BlobStore
	Pipeline  *archive.Pipeline
	Restorer  *archive.Restorer
	Verifier  *archive.Verifier
	Chain     *audit.Chain
	Locker    lease.Locker
	Bus       bus.Bus
	Metrics   *metrics.Metrics
}

// Service executes retention policies against tenant data.
type Service struct {
	config    *Config
	registry  datastore.Registry
	policies  retention.PolicyStore
	approvals retention.ApprovalStore
	archives  archive.Store
	blobs     archive.BlobStore
	pipeline  *archive.Pipeline
	restorer  *archive.Restorer
	verifier  *archive.Verifier
	chain     *audit.Chain
	locker    lease.Locker
	bus       bus.Bus
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a retention service from its dependencies.
func New(config *Config, deps Deps) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Actor == "" {
		config.Actor = "retention-service"
	}
	if config.LeaseTTL <= 0 {
		config.LeaseTTL = 10 * time.Minute
	}

	required := []struct {
		name    string
		missing bool
	}{
		{"registry", deps.Registry == nil},
		{"policy store", deps.Policies == nil},
		{"approval store", deps.Approvals == nil},
		{"archive store", deps.Archives == nil},
		{"blob store", deps.Blobs == nil},
		{"archive pipeline", deps.Pipeline == nil},
		{"restorer", deps.Restorer == nil},
		{"verifier", deps.Verifier == nil},
		{"audit chain", deps.Chain == nil},
	}
	for _, dep := range required {
		if dep.missing {
			return nil, fmt.Errorf("retention service requires a %s", dep.name)
		}
	}

	locker := deps.Locker
	if locker == nil {
		locker = lease.NewLocalLocker()
	}

	return &Service{
		config:    config,
		registry:  deps.Registry,
		policies:  deps.Policies,
		approvals: deps.Approvals,
		archives:  deps.Archives,
		blobs:     deps.Blobs,
		pipeline:  deps.Pipeline,
		restorer:  deps.Restorer,
		verifier:  deps.Verifier,
		chain:     deps.Chain,
		locker:    locker,
		bus:       deps.Bus,
		metrics:   deps.Metrics,
		logger:    slog.Default().With("component", "retention.service"),
	}, nil
}

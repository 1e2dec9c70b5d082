package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"custodia-hq/amber/pkg/archive"
	"custodia-hq/amber/pkg/audit"
	"custodia-hq/amber/pkg/bus"
	"custodia-hq/amber/pkg/config"
	"custodia-hq/amber/pkg/datastore"
	"custodia-hq/amber/pkg/datastore/sqlstore"
	"custodia-hq/amber/pkg/lease"
	"custodia-hq/amber/pkg/retention/service"
	"custodia-hq/amber/pkg/security/keys"
	"custodia-hq/amber/pkg/telemetry/metrics"
)

// app bundles the wired retention service with the handles commands still
// need after construction.
type app struct {
	svc *service.Service
	db  *sqlstore.DB
	bus bus.Bus

	closers []func() error
}

// Close releases app resources in reverse construction order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("shutdown cleanup failed", "error", err)
		}
	}
}

// buildApp wires the retention service and its collaborators from
// configuration. On error, everything already opened is closed.
func buildApp(cfg *config.Config) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// Relational storage: records, policies, archive metadata, approvals.
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	dataTypes := make([]datastore.DataType, 0, len(cfg.DataTypes))
	for _, dt := range cfg.DataTypes {
		dataTypes = append(dataTypes, datastore.DataType(dt))
	}
	registry := sqlstore.NewRegistry(db, dataTypes)
	policies := sqlstore.NewPolicyStore(db)
	archives := sqlstore.NewArchiveStore(db)
	approvals := sqlstore.NewApprovalStore(db)

	// Master key custody and the per-archive keyring.
	keyring, err := openKeyring(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, keyring.Close)

	// Tamper-evident audit chain.
	chain, err := openChain(cfg)
	if err != nil {
		return nil, err
	}

	// Archive blobs, optionally mirrored.
	blobs, err := archive.NewLocalBlobStore(cfg.Archive.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	a.closers = append(a.closers, blobs.Close)

	var mirror archive.BlobStore
	if cfg.Archive.MirrorPath != "" {
		m, err := archive.NewLocalBlobStore(cfg.Archive.MirrorPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open mirror blob store: %w", err)
		}
		a.closers = append(a.closers, m.Close)
		mirror = m
	}

	pipeline, err := archive.NewPipeline(archives, blobs, keyring, mirror)
	if err != nil {
		return nil, err
	}
	restorer, err := archive.NewRestorer(archives, blobs, keyring, registry)
	if err != nil {
		return nil, err
	}
	verifier, err := archive.NewVerifier(archives, blobs)
	if err != nil {
		return nil, err
	}

	// Execution leases.
	locker, err := openLocker(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, locker.Close)

	// Event publication.
	if cfg.Bus.Type != "none" {
		eventBus, err := bus.New(&bus.Config{
			Type:              cfg.Bus.Type,
			ChannelBufferSize: cfg.Bus.BufferSize,
			NATSUrl:           cfg.Bus.NATS.URL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start event bus: %w", err)
		}
		a.bus = eventBus
		a.closers = append(a.closers, eventBus.Close)
	}

	var collector *metrics.Metrics
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewMetrics()
	}

	svc, err := service.New(&service.Config{
		Schedule: cfg.Retention.Schedule,
		Actor:    cfg.Retention.Actor,
		LeaseTTL: cfg.Retention.LeaseTTL,
		Location: cfg.Archive.Location,
	}, service.Deps{
		Registry:  registry,
		Policies:  policies,
		Approvals: approvals,
		Archives:  archives,
		Blobs:     blobs,
		Pipeline:  pipeline,
		Restorer:  restorer,
		Verifier:  verifier,
		Chain:     chain,
		Locker:    locker,
		Bus:       a.bus,
		Metrics:   collector,
	})
	if err != nil {
		return nil, err
	}
	a.svc = svc

	ok = true
	return a, nil
}

// openDB opens the relational store from configuration.
func openDB(cfg *config.Config) (*sqlstore.DB, error) {
	// A plain-path SQLite DSN needs its directory on first boot.
	if cfg.Storage.Driver == sqlstore.DriverSQLite &&
		!strings.HasPrefix(cfg.Storage.DSN, "file:") && cfg.Storage.DSN != ":memory:" {
		if dir := filepath.Dir(cfg.Storage.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create storage directory: %w", err)
			}
		}
	}

	db, err := sqlstore.Open(&sqlstore.Config{
		Driver:       cfg.Storage.Driver,
		DSN:          cfg.Storage.DSN,
		MaxOpenConns: cfg.Storage.MaxOpenConns,
		MaxIdleConns: cfg.Storage.MaxIdleConns,
		WALMode:      cfg.Storage.WALMode,
		BusyTimeout:  cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return db, nil
}

// openKeyring builds the master key provider from configuration and opens
// the keyring on top of it.
func openKeyring(cfg *config.Config) (*keys.Keyring, error) {
	var provider keys.MasterKeyProvider
	switch cfg.Keys.Provider {
	case "env":
		provider = keys.NewEnvProvider(cfg.Keys.EnvVar)
	case "file":
		provider = keys.NewFileProvider(cfg.Keys.FilePath, cfg.Keys.GenerateIfMissing)
	default:
		return nil, fmt.Errorf("unsupported key provider %q", cfg.Keys.Provider)
	}

	keyring, err := keys.NewKeyring(&keys.KeyringConfig{
		Dir:   cfg.Keys.Dir,
		Watch: cfg.Keys.Watch,
	}, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return keyring, nil
}

// openChain loads the chain HMAC secret and opens the audit chain.
func openChain(cfg *config.Config) (*audit.Chain, error) {
	// The secret usually lives inside the chain directory, which does not
	// exist on first boot.
	if dir := filepath.Dir(cfg.Audit.SecretFile); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create chain secret directory: %w", err)
		}
	}

	secret, err := keys.LoadOrGenerateKeyFile(cfg.Audit.SecretFile, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain secret: %w", err)
	}

	chain, err := audit.NewChain(&audit.Config{
		Dir:        cfg.Audit.Dir,
		Categories: cfg.Audit.Categories,
	}, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit chain: %w", err)
	}
	return chain, nil
}

// openLocker builds the execution lease backend from configuration.
func openLocker(cfg *config.Config) (lease.Locker, error) {
	switch cfg.Retention.Lease.Type {
	case "redis":
		locker, err := lease.NewRedisLocker(
			cfg.Retention.Lease.Redis.Addr,
			cfg.Retention.Lease.Redis.Password,
			cfg.Retention.Lease.Redis.DB,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect redis locker: %w", err)
		}
		return locker, nil
	default:
		return lease.NewLocalLocker(), nil
	}
}

package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Storage.Driver != DefaultStorageDriver {
		t.Errorf("expected driver %q, got %q", DefaultStorageDriver, cfg.Storage.Driver)
	}
	if cfg.Storage.DSN != DefaultStorageDSN {
		t.Errorf("expected dsn %q, got %q", DefaultStorageDSN, cfg.Storage.DSN)
	}
	if !cfg.Storage.WALMode {
		t.Error("expected WAL mode on by default")
	}
	if cfg.Storage.BusyTimeout != DefaultStorageBusyTimeout {
		t.Errorf("expected busy timeout %v, got %v", DefaultStorageBusyTimeout, cfg.Storage.BusyTimeout)
	}

	if cfg.Retention.Schedule != DefaultRetentionSchedule {
		t.Errorf("expected schedule %q, got %q", DefaultRetentionSchedule, cfg.Retention.Schedule)
	}
	if cfg.Retention.Actor != DefaultRetentionActor {
		t.Errorf("expected actor %q, got %q", DefaultRetentionActor, cfg.Retention.Actor)
	}
	if cfg.Retention.Lease.Type != DefaultLeaseType {
		t.Errorf("expected lease type %q, got %q", DefaultLeaseType, cfg.Retention.Lease.Type)
	}
	if cfg.Retention.Lease.Redis.Addr != DefaultRedisAddr {
		t.Errorf("expected redis addr %q, got %q", DefaultRedisAddr, cfg.Retention.Lease.Redis.Addr)
	}

	if cfg.Archive.BasePath != DefaultArchiveBasePath {
		t.Errorf("expected base path %q, got %q", DefaultArchiveBasePath, cfg.Archive.BasePath)
	}
	if cfg.Archive.Location != DefaultArchiveLocation {
		t.Errorf("expected location %q, got %q", DefaultArchiveLocation, cfg.Archive.Location)
	}
	if cfg.Archive.MirrorPath != "" {
		t.Errorf("expected no mirror path by default, got %q", cfg.Archive.MirrorPath)
	}

	if cfg.Audit.Dir != DefaultAuditDir {
		t.Errorf("expected audit dir %q, got %q", DefaultAuditDir, cfg.Audit.Dir)
	}
	if len(cfg.Audit.Categories) != 2 || cfg.Audit.Categories[0] != "retention" {
		t.Errorf("expected default categories, got %v", cfg.Audit.Categories)
	}

	if cfg.Keys.Provider != DefaultKeysProvider {
		t.Errorf("expected keys provider %q, got %q", DefaultKeysProvider, cfg.Keys.Provider)
	}
	if cfg.Keys.EnvVar != DefaultKeysEnvVar {
		t.Errorf("expected env var %q, got %q", DefaultKeysEnvVar, cfg.Keys.EnvVar)
	}
	if !cfg.Keys.GenerateIfMissing {
		t.Error("expected generate_if_missing on by default")
	}

	if cfg.Bus.Type != DefaultBusType {
		t.Errorf("expected bus type %q, got %q", DefaultBusType, cfg.Bus.Type)
	}
	if cfg.Bus.BufferSize != DefaultBusBufferSize {
		t.Errorf("expected buffer size %d, got %d", DefaultBusBufferSize, cfg.Bus.BufferSize)
	}

	if len(cfg.DataTypes) != 4 {
		t.Errorf("expected four default data types, got %v", cfg.DataTypes)
	}

	if cfg.Telemetry.Logging.Level != DefaultLoggingLevel {
		t.Errorf("expected logging level %q, got %q", DefaultLoggingLevel, cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics disabled by default")
	}
	if cfg.Telemetry.Metrics.ListenAddress != DefaultMetricsListenAddress {
		t.Errorf("expected listen address %q, got %q", DefaultMetricsListenAddress, cfg.Telemetry.Metrics.ListenAddress)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("defaulted config should validate, got: %v", err)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Storage: StorageConfig{
			Driver:       "postgres",
			DSN:          "postgres://amber@db:5432/amber",
			MaxOpenConns: 50,
		},
		Retention: RetentionConfig{
			Schedule: "0 3 * * *",
			LeaseTTL: time.Hour,
		},
		Audit: AuditConfig{
			Categories: []string{"retention"},
		},
		DataTypes: []string{"invoices"},
	}
	ApplyDefaults(cfg)

	if cfg.Storage.Driver != "postgres" {
		t.Errorf("explicit driver overwritten: %q", cfg.Storage.Driver)
	}
	if cfg.Storage.DSN != "postgres://amber@db:5432/amber" {
		t.Errorf("explicit dsn overwritten: %q", cfg.Storage.DSN)
	}
	if cfg.Storage.MaxOpenConns != 50 {
		t.Errorf("explicit max open conns overwritten: %d", cfg.Storage.MaxOpenConns)
	}
	if cfg.Retention.Schedule != "0 3 * * *" {
		t.Errorf("explicit schedule overwritten: %q", cfg.Retention.Schedule)
	}
	if cfg.Retention.LeaseTTL != time.Hour {
		t.Errorf("explicit lease TTL overwritten: %v", cfg.Retention.LeaseTTL)
	}
	if len(cfg.Audit.Categories) != 1 {
		t.Errorf("explicit categories overwritten: %v", cfg.Audit.Categories)
	}
	if len(cfg.DataTypes) != 1 || cfg.DataTypes[0] != "invoices" {
		t.Errorf("explicit data types overwritten: %v", cfg.DataTypes)
	}

	// Untouched fields still get defaults.
	if cfg.Retention.Actor != DefaultRetentionActor {
		t.Errorf("expected default actor, got %q", cfg.Retention.Actor)
	}
	if cfg.Audit.Dir != DefaultAuditDir {
		t.Errorf("expected default audit dir, got %q", cfg.Audit.Dir)
	}
}

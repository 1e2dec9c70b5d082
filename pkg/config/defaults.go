package config

import "time"

// Default values for configuration fields.
const (
	// Storage defaults
	DefaultStorageDriver       = "sqlite"
	DefaultStorageDSN          = "data/amber.db"
	DefaultStorageMaxOpenConns = 10
	DefaultStorageMaxIdleConns = 5
	DefaultStorageWALMode      = true
	DefaultStorageBusyTimeout  = 5 * time.Second

	// Retention defaults
	DefaultRetentionSchedule = "*/15 * * * *"
	DefaultRetentionActor    = "retention-service"
	DefaultRetentionLeaseTTL = 10 * time.Minute
	DefaultLeaseType         = "local"
	DefaultRedisAddr         = "127.0.0.1:6379"

	// Archive defaults
	DefaultArchiveBasePath = "data/archives"
	DefaultArchiveLocation = "local"

	// Audit defaults
	DefaultAuditDir        = "data/audit"
	DefaultAuditSecretFile = "data/audit/chain.key"

	// Keys defaults
	DefaultKeysProvider          = "env"
	DefaultKeysEnvVar            = "AMBER_MASTER_KEY"
	DefaultKeysFilePath          = "data/master.key"
	DefaultKeysGenerateIfMissing = true
	DefaultKeysDir               = "data/keys"

	// Bus defaults
	DefaultBusType       = "channel"
	DefaultBusBufferSize = 64
	DefaultNATSURL       = "nats://127.0.0.1:4222"

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "json"
	DefaultMetricsListenAddress = "127.0.0.1:9090"
)

// DefaultAuditCategories returns the chain categories treated as immutable
// when the configuration does not list any.
func DefaultAuditCategories() []string {
	return []string{"retention", "archives"}
}

// DefaultDataTypes returns the record collections managed when the
// configuration does not list any.
func DefaultDataTypes() []string {
	return []string{"audit_logs", "transactions", "documents", "messages"}
}

// ApplyDefaults fills in default values for any configuration fields that
// were not set. It modifies the configuration in place.
func ApplyDefaults(cfg *Config) {
	// Storage defaults
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DefaultStorageDriver
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = DefaultStorageDSN
	}
	if cfg.Storage.MaxOpenConns == 0 {
		cfg.Storage.MaxOpenConns = DefaultStorageMaxOpenConns
	}
	if cfg.Storage.MaxIdleConns == 0 {
		cfg.Storage.MaxIdleConns = DefaultStorageMaxIdleConns
	}
	// WAL defaults to true; an explicit false in the file is
	// indistinguishable from unset and comes back on.
	if !cfg.Storage.WALMode {
		cfg.Storage.WALMode = DefaultStorageWALMode
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = DefaultStorageBusyTimeout
	}

	// Retention defaults
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultRetentionSchedule
	}
	if cfg.Retention.Actor == "" {
		cfg.Retention.Actor = DefaultRetentionActor
	}
	if cfg.Retention.LeaseTTL == 0 {
		cfg.Retention.LeaseTTL = DefaultRetentionLeaseTTL
	}
	if cfg.Retention.Lease.Type == "" {
		cfg.Retention.Lease.Type = DefaultLeaseType
	}
	if cfg.Retention.Lease.Redis.Addr == "" {
		cfg.Retention.Lease.Redis.Addr = DefaultRedisAddr
	}

	// Archive defaults
	if cfg.Archive.BasePath == "" {
		cfg.Archive.BasePath = DefaultArchiveBasePath
	}
	if cfg.Archive.Location == "" {
		cfg.Archive.Location = DefaultArchiveLocation
	}

	// Audit defaults
	if cfg.Audit.Dir == "" {
		cfg.Audit.Dir = DefaultAuditDir
	}
	if len(cfg.Audit.Categories) == 0 {
		cfg.Audit.Categories = DefaultAuditCategories()
	}
	if cfg.Audit.SecretFile == "" {
		cfg.Audit.SecretFile = DefaultAuditSecretFile
	}

	// Keys defaults
	if cfg.Keys.Provider == "" {
		cfg.Keys.Provider = DefaultKeysProvider
	}
	if cfg.Keys.EnvVar == "" {
		cfg.Keys.EnvVar = DefaultKeysEnvVar
	}
	if cfg.Keys.FilePath == "" {
		cfg.Keys.FilePath = DefaultKeysFilePath
	}
	if !cfg.Keys.GenerateIfMissing {
		cfg.Keys.GenerateIfMissing = DefaultKeysGenerateIfMissing
	}
	if cfg.Keys.Dir == "" {
		cfg.Keys.Dir = DefaultKeysDir
	}

	// Bus defaults
	if cfg.Bus.Type == "" {
		cfg.Bus.Type = DefaultBusType
	}
	if cfg.Bus.BufferSize == 0 {
		cfg.Bus.BufferSize = DefaultBusBufferSize
	}
	if cfg.Bus.NATS.URL == "" {
		cfg.Bus.NATS.URL = DefaultNATSURL
	}

	// Data type defaults
	if len(cfg.DataTypes) == 0 {
		cfg.DataTypes = DefaultDataTypes()
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
}

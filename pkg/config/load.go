package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention AMBER_SECTION_FIELD (e.g., AMBER_STORAGE_DSN).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	// First load from file (this already applies defaults)
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	// Re-validate after overrides
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format AMBER_SECTION_FIELD. Values that fail to
// parse are ignored and the file value stands.
func applyEnvOverrides(cfg *Config) {
	// Storage overrides
	if val := os.Getenv("AMBER_STORAGE_DRIVER"); val != "" {
		cfg.Storage.Driver = val
	}
	if val := os.Getenv("AMBER_STORAGE_DSN"); val != "" {
		cfg.Storage.DSN = val
	}
	if val := os.Getenv("AMBER_STORAGE_MAX_OPEN_CONNS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Storage.MaxOpenConns = i
		}
	}
	if val := os.Getenv("AMBER_STORAGE_MAX_IDLE_CONNS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Storage.MaxIdleConns = i
		}
	}
	if val := os.Getenv("AMBER_STORAGE_WAL_MODE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Storage.WALMode = b
		}
	}
	if val := os.Getenv("AMBER_STORAGE_BUSY_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Storage.BusyTimeout = d
		}
	}

	// Retention overrides
	if val := os.Getenv("AMBER_RETENTION_SCHEDULE"); val != "" {
		cfg.Retention.Schedule = val
	}
	if val := os.Getenv("AMBER_RETENTION_ACTOR"); val != "" {
		cfg.Retention.Actor = val
	}
	if val := os.Getenv("AMBER_RETENTION_LEASE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Retention.LeaseTTL = d
		}
	}
	if val := os.Getenv("AMBER_RETENTION_LEASE_TYPE"); val != "" {
		cfg.Retention.Lease.Type = val
	}
	if val := os.Getenv("AMBER_RETENTION_LEASE_REDIS_ADDR"); val != "" {
		cfg.Retention.Lease.Redis.Addr = val
	}
	if val := os.Getenv("AMBER_RETENTION_LEASE_REDIS_PASSWORD"); val != "" {
		cfg.Retention.Lease.Redis.Password = val
	}
	if val := os.Getenv("AMBER_RETENTION_LEASE_REDIS_DB"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retention.Lease.Redis.DB = i
		}
	}

	// Archive overrides
	if val := os.Getenv("AMBER_ARCHIVE_BASE_PATH"); val != "" {
		cfg.Archive.BasePath = val
	}
	if val := os.Getenv("AMBER_ARCHIVE_MIRROR_PATH"); val != "" {
		cfg.Archive.MirrorPath = val
	}
	if val := os.Getenv("AMBER_ARCHIVE_LOCATION"); val != "" {
		cfg.Archive.Location = val
	}

	// Audit overrides
	if val := os.Getenv("AMBER_AUDIT_DIR"); val != "" {
		cfg.Audit.Dir = val
	}
	if val := os.Getenv("AMBER_AUDIT_CATEGORIES"); val != "" {
		cfg.Audit.Categories = splitList(val)
	}
	if val := os.Getenv("AMBER_AUDIT_SECRET_FILE"); val != "" {
		cfg.Audit.SecretFile = val
	}

	// Keys overrides
	if val := os.Getenv("AMBER_KEYS_PROVIDER"); val != "" {
		cfg.Keys.Provider = val
	}
	if val := os.Getenv("AMBER_KEYS_ENV_VAR"); val != "" {
		cfg.Keys.EnvVar = val
	}
	if val := os.Getenv("AMBER_KEYS_FILE_PATH"); val != "" {
		cfg.Keys.FilePath = val
	}
	if val := os.Getenv("AMBER_KEYS_DIR"); val != "" {
		cfg.Keys.Dir = val
	}
	if val := os.Getenv("AMBER_KEYS_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Keys.Watch = b
		}
	}

	// Bus overrides
	if val := os.Getenv("AMBER_BUS_TYPE"); val != "" {
		cfg.Bus.Type = val
	}
	if val := os.Getenv("AMBER_BUS_BUFFER_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Bus.BufferSize = i
		}
	}
	if val := os.Getenv("AMBER_BUS_NATS_URL"); val != "" {
		cfg.Bus.NATS.URL = val
	}

	// Data type overrides
	if val := os.Getenv("AMBER_DATA_TYPES"); val != "" {
		cfg.DataTypes = splitList(val)
	}

	// Telemetry overrides
	if val := os.Getenv("AMBER_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("AMBER_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("AMBER_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("AMBER_TELEMETRY_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Telemetry.Metrics.ListenAddress = val
	}
}

// splitList splits a comma-separated environment value into a trimmed list.
func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

package config

import (
	"fmt"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "storage.driver").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateArchive(&cfg.Archive)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateKeys(&cfg.Keys)...)
	errs = append(errs, validateBus(&cfg.Bus)...)
	errs = append(errs, validateDataTypes(cfg.DataTypes)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateStorage validates storage configuration.
func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	validDrivers := map[string]bool{"sqlite": true, "postgres": true}
	if cfg.Driver == "" {
		errs = append(errs, FieldError{
			Field:   "storage.driver",
			Message: "driver is required",
		})
	} else if !validDrivers[cfg.Driver] {
		errs = append(errs, FieldError{
			Field:   "storage.driver",
			Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'postgres'", cfg.Driver),
		})
	}

	if cfg.DSN == "" {
		errs = append(errs, FieldError{
			Field:   "storage.dsn",
			Message: "dsn is required",
		})
	}

	if cfg.MaxOpenConns < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.max_open_conns",
			Message: "max open connections cannot be negative",
		})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.max_idle_conns",
			Message: "max idle connections cannot be negative",
		})
	}
	if cfg.MaxOpenConns > 0 && cfg.MaxIdleConns > cfg.MaxOpenConns {
		errs = append(errs, FieldError{
			Field:   "storage.max_idle_conns",
			Message: "max idle connections cannot exceed max open connections",
		})
	}

	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.busy_timeout",
			Message: "busy timeout cannot be negative",
		})
	}

	return errs
}

// validateRetention validates retention service configuration. The cron
// syntax of Schedule is checked by the scheduler at startup, not here.
func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.Schedule == "" {
		errs = append(errs, FieldError{
			Field:   "retention.schedule",
			Message: "schedule is required",
		})
	}

	if cfg.Actor == "" {
		errs = append(errs, FieldError{
			Field:   "retention.actor",
			Message: "actor is required",
		})
	}

	if cfg.LeaseTTL <= 0 {
		errs = append(errs, FieldError{
			Field:   "retention.lease_ttl",
			Message: "lease TTL must be positive",
		})
	}

	validLeases := map[string]bool{"local": true, "redis": true}
	if cfg.Lease.Type == "" {
		errs = append(errs, FieldError{
			Field:   "retention.lease.type",
			Message: "lease type is required",
		})
	} else if !validLeases[cfg.Lease.Type] {
		errs = append(errs, FieldError{
			Field:   "retention.lease.type",
			Message: fmt.Sprintf("invalid lease type %q: must be 'local' or 'redis'", cfg.Lease.Type),
		})
	}

	if cfg.Lease.Type == "redis" {
		if cfg.Lease.Redis.Addr == "" {
			errs = append(errs, FieldError{
				Field:   "retention.lease.redis.addr",
				Message: "redis address is required when lease type is 'redis'",
			})
		}
		if cfg.Lease.Redis.DB < 0 {
			errs = append(errs, FieldError{
				Field:   "retention.lease.redis.db",
				Message: "redis database number cannot be negative",
			})
		}
	}

	return errs
}

// validateArchive validates archive placement configuration.
func validateArchive(cfg *ArchiveConfig) []FieldError {
	var errs []FieldError

	if cfg.BasePath == "" {
		errs = append(errs, FieldError{
			Field:   "archive.base_path",
			Message: "base path is required",
		})
	}

	if cfg.MirrorPath != "" && cfg.MirrorPath == cfg.BasePath {
		errs = append(errs, FieldError{
			Field:   "archive.mirror_path",
			Message: "mirror path must differ from base path",
		})
	}

	if cfg.Location == "" {
		errs = append(errs, FieldError{
			Field:   "archive.location",
			Message: "location is required",
		})
	}

	return errs
}

// validateAudit validates audit chain configuration.
func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if cfg.Dir == "" {
		errs = append(errs, FieldError{
			Field:   "audit.dir",
			Message: "chain directory is required",
		})
	}

	if len(cfg.Categories) == 0 {
		errs = append(errs, FieldError{
			Field:   "audit.categories",
			Message: "at least one immutable category is required",
		})
	}
	for i, cat := range cfg.Categories {
		if cat == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("audit.categories[%d]", i),
				Message: "category cannot be empty",
			})
			continue
		}
		// Category names become chain file names.
		if strings.ContainsAny(cat, `/\`) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("audit.categories[%d]", i),
				Message: fmt.Sprintf("category %q cannot contain path separators", cat),
			})
		}
	}

	if cfg.SecretFile == "" {
		errs = append(errs, FieldError{
			Field:   "audit.secret_file",
			Message: "secret file is required",
		})
	}

	return errs
}

// validateKeys validates key custody configuration.
func validateKeys(cfg *KeysConfig) []FieldError {
	var errs []FieldError

	validProviders := map[string]bool{"env": true, "file": true}
	if cfg.Provider == "" {
		errs = append(errs, FieldError{
			Field:   "keys.provider",
			Message: "provider is required",
		})
	} else if !validProviders[cfg.Provider] {
		errs = append(errs, FieldError{
			Field:   "keys.provider",
			Message: fmt.Sprintf("invalid provider %q: must be 'env' or 'file'", cfg.Provider),
		})
	}

	if cfg.Provider == "env" && cfg.EnvVar == "" {
		errs = append(errs, FieldError{
			Field:   "keys.env_var",
			Message: "environment variable name is required when provider is 'env'",
		})
	}
	if cfg.Provider == "file" && cfg.FilePath == "" {
		errs = append(errs, FieldError{
			Field:   "keys.file_path",
			Message: "key file path is required when provider is 'file'",
		})
	}

	if cfg.Dir == "" {
		errs = append(errs, FieldError{
			Field:   "keys.dir",
			Message: "keyring directory is required",
		})
	}

	return errs
}

// validateBus validates event bus configuration.
func validateBus(cfg *BusConfig) []FieldError {
	var errs []FieldError

	validTypes := map[string]bool{"none": true, "channel": true, "nats": true}
	if cfg.Type == "" {
		errs = append(errs, FieldError{
			Field:   "bus.type",
			Message: "bus type is required",
		})
	} else if !validTypes[cfg.Type] {
		errs = append(errs, FieldError{
			Field:   "bus.type",
			Message: fmt.Sprintf("invalid bus type %q: must be 'none', 'channel', or 'nats'", cfg.Type),
		})
	}

	if cfg.Type == "channel" && cfg.BufferSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "bus.buffer_size",
			Message: "buffer size must be positive when bus type is 'channel'",
		})
	}

	if cfg.Type == "nats" && cfg.NATS.URL == "" {
		errs = append(errs, FieldError{
			Field:   "bus.nats.url",
			Message: "nats url is required when bus type is 'nats'",
		})
	}

	return errs
}

// validateDataTypes validates the managed data type list.
func validateDataTypes(types []string) []FieldError {
	var errs []FieldError

	if len(types) == 0 {
		errs = append(errs, FieldError{
			Field:   "data_types",
			Message: "at least one data type is required",
		})
	}

	seen := make(map[string]bool, len(types))
	for i, dt := range types {
		if dt == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("data_types[%d]", i),
				Message: "data type cannot be empty",
			})
			continue
		}
		if strings.ContainsAny(dt, " \t") {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("data_types[%d]", i),
				Message: fmt.Sprintf("data type %q cannot contain whitespace", dt),
			})
		}
		if seen[dt] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("data_types[%d]", i),
				Message: fmt.Sprintf("duplicate data type %q", dt),
			})
		}
		seen[dt] = true
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.listen_address",
			Message: "listen address is required when metrics are enabled",
		})
	}

	return errs
}

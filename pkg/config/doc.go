// Package config provides configuration management for Amber.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with comprehensive validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention AMBER_SECTION_FIELD.
// For example:
//
//   - AMBER_STORAGE_DSN overrides storage.dsn
//   - AMBER_RETENTION_SCHEDULE overrides retention.schedule
//   - AMBER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
// List-valued settings (audit.categories, data_types) take a comma-separated
// value.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// The loaded Config is a plain value handed to constructors; there is no
// package-level configuration state.
//
// # Validation
//
// All configuration is validated automatically during loading. Validation includes:
//
//   - Required field checks (e.g., storage DSN, keyring directory)
//   - Range validation (e.g., connection limits cannot be negative)
//   - Enumeration checks (e.g., storage driver must be sqlite or postgres)
//   - Logical validation (e.g., a redis lease requires a redis address)
//
// Validation errors include field paths and helpful messages:
//
//	configuration validation failed with 2 errors:
//	  - storage.driver: invalid driver "mysql": must be 'sqlite' or 'postgres'
//	  - retention.lease.redis.addr: redis address is required when lease type is 'redis'
//
// The cron syntax of retention.schedule is not checked here; the scheduler
// validates it when runs are started.
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	storage:
//	  driver: "sqlite"
//	  dsn: "data/amber.db"
//
//	retention:
//	  schedule: "*/15 * * * *"
//
//	archive:
//	  base_path: "data/archives"
//
//	audit:
//	  dir: "data/audit"
//	  categories: ["retention", "archives"]
//
//	keys:
//	  provider: "env"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config

package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"custodia-hq/amber/pkg/datastore"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains configuration for the SQL storage backend.
type Config struct {
	// Driver selects the backend: "sqlite" or "postgres".
	Driver string

	// DSN is the database file path for SQLite or a connection string
	// for PostgreSQL.
	DSN string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// SQLite only. Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// SQLite only. Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultConfig returns the default SQL storage configuration.
func DefaultConfig() *Config {
	return &Config{
		Driver:       DriverSQLite,
		DSN:          "data/amber.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// DB is a shared database handle backing every sqlstore implementation.
type DB struct {
	db     *sql.DB
	driver string
	config *Config
	logger *slog.Logger
}

// Open connects to the database and initializes the schema.
func Open(config *Config) (*DB, error) {
	if config == nil {
		config = DefaultConfig()
	}

	logger := slog.Default().With("component", "sqlstore")

	switch config.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, datastore.NewStorageError(config.Driver, "open",
			fmt.Errorf("unsupported driver %q", config.Driver))
	}

	// Open database connection
	db, err := sql.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, datastore.NewStorageError(config.Driver, "open", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	d := &DB{
		db:     db,
		driver: config.Driver,
		config: config,
		logger: logger,
	}

	// Initialize database
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQL storage initialized",
		"driver", config.Driver,
		"max_open_conns", config.MaxOpenConns,
	)

	return d, nil
}

// initialize sets up the database schema and SQLite pragmas.
func (d *DB) initialize() error {
	if d.driver == DriverSQLite {
		// Enable WAL mode if configured
		if d.config.WALMode {
			_, err := d.db.Exec("PRAGMA journal_mode=WAL;")
			if err != nil {
				return datastore.NewStorageError(d.driver, "enable_wal", err)
			}
			d.logger.Debug("WAL mode enabled")
		}

		// Set busy timeout
		busyTimeoutMs := d.config.BusyTimeout.Milliseconds()
		_, err := d.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs))
		if err != nil {
			return datastore.NewStorageError(d.driver, "set_busy_timeout", err)
		}
	}

	// Create schema
	_, err := d.db.Exec(Schema)
	if err != nil {
		return datastore.NewStorageError(d.driver, "create_schema", err)
	}
	d.logger.Debug("database schema created")

	// Insert schema version
	_, err = d.db.Exec(d.rebind(InsertSchemaVersion), SchemaVersion, time.Now().UnixNano())
	if err != nil {
		return datastore.NewStorageError(d.driver, "insert_schema_version", err)
	}

	// Verify schema version
	var version int
	err = d.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return datastore.NewStorageError(d.driver, "get_schema_version", err)
	}

	if version != SchemaVersion {
		return datastore.NewStorageError(d.driver, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	d.logger.Debug("schema version verified", "version", version)

	return nil
}

// Ping verifies the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return datastore.NewStorageError(d.driver, "ping", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return datastore.NewStorageError(d.driver, "close", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $N for PostgreSQL. Queries are written
// in SQLite's placeholder style and rebound on the way out.
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// placeholders returns a comma-separated list of n placeholders for use in
// IN clauses, before rebinding.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Timestamps are stored as int64 Unix nanoseconds: the representation sorts
// and compares identically under both drivers and survives round trips
// without driver-specific time handling.

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func toNanosPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func fromNanosPtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

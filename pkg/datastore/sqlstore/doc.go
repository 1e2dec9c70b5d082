// Package sqlstore provides SQL-backed implementations of the datastore,
// retention, and archive persistence contracts.
//
// One DB handle serves every store. The schema is portable across the two
// supported drivers (modernc.org/sqlite and lib/pq): timestamps are stored
// as int64 Unix nanoseconds, queries are written with ? placeholders and
// rebound to $N for PostgreSQL, and structured policy sections are stored
// as JSON text columns. Unbounded histories (audit trail, access log,
// restorations, configuration changes) live in child tables rather than
// embedded documents.
package sqlstore

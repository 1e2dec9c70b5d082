// Package datastore defines the record model and per-collection storage
// contracts that the retention and archival subsystems operate on.
//
// Each category of tenant data (audit logs, transactions, documents,
// messages) is addressed by a DataType and backed by an EntityStore. The
// Registry maps data types to their stores, so callers never touch
// collection names directly. Unknown data types are rejected up front
// rather than at query time.
//
// The package carries an in-memory EntityStore for tests and small
// deployments; the SQL-backed implementation lives in the sqlstore
// subpackage.
package datastore

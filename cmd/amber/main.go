// Amber is a data retention, archival, and tamper-evident audit service.
//
// It enforces per-tenant retention policies over managed record collections,
// providing:
//   - Scheduled soft/hard deletion of records past their retention period
//   - Compressed, encrypted archival of records approaching expiry
//   - Hash-chained audit trails for every retention decision
//   - Legal holds that exempt archives from deletion
//   - Restore of archived records back into live storage
//
// Usage:
//
//	# Start the retention service with default configuration
//	amber run
//
//	# Start with custom configuration file
//	amber run --config /path/to/config.yaml
//
//	# Execute due policies once and exit
//	amber run --once
//
//	# Show version information
//	amber version
//
//	# Verify audit chain integrity
//	amber verify --category retention
//
//	# Produce a tenant compliance report
//	amber report --tenant acme
//
// For complete documentation, see: https://github.com/custodia-hq/amber
package main

func main() {
	Execute()
}

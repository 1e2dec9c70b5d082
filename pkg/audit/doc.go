// Package audit provides tamper-evident audit logging.
//
// Events append to per-category NDJSON logs where each entry carries an
// HMAC-SHA256 hash covering its own fields and the previous entry's hash,
// forming a chain: altering, dropping, or reordering any line breaks every
// hash after it. Verification replays a log and reports exactly which
// entries fail and why. Appends are serialized per category; verification
// is read-only and can run against a live log.
package audit

// Package archive implements cold storage for retained records.
//
// Records aging out of their hot store are packed into a JSON envelope,
// optionally gzip-compressed and AES-256-GCM encrypted, checksummed, and
// written to a blob location. Each archive is tracked by a metadata row
// whose lifecycle runs creating -> completed (or failed), with verify and
// restore operations layered on top. Completed archives are immutable:
// the store only exposes narrow transitions, never free-form updates.
package archive

package sqlstore

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema defines the database schema. Every statement is accepted by both
// SQLite and PostgreSQL: portable column types only, no dialect-specific
// defaults, and all timestamps as int64 Unix nanoseconds.
const Schema = `
-- Tenant records under retention management. All data types share one
-- table; each entity store filters on its own data_type.
CREATE TABLE IF NOT EXISTS records (
    id            TEXT PRIMARY KEY,
    data_type     TEXT NOT NULL,
    tenant_id     TEXT NOT NULL,
    occurred_at   BIGINT NOT NULL,
    deleted_at    BIGINT,
    deleted_by    TEXT,
    delete_reason TEXT,
    archived_at   BIGINT,
    archive_id    TEXT,
    payload       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_scope
    ON records(data_type, tenant_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_records_deleted
    ON records(data_type, tenant_id, deleted_at);
CREATE INDEX IF NOT EXISTS idx_records_archive
    ON records(archive_id);

-- Retention policies. Structured sections are JSON text columns; run
-- statistics are only written through UpdateStatistics.
CREATE TABLE IF NOT EXISTS retention_policies (
    id               TEXT PRIMARY KEY,
    tenant_id        TEXT NOT NULL,
    data_type        TEXT NOT NULL,
    retention_period TEXT NOT NULL,
    archival         TEXT NOT NULL,
    deletion         TEXT NOT NULL,
    legal            TEXT NOT NULL,
    schedule         TEXT NOT NULL,
    statistics       TEXT NOT NULL,
    status           TEXT NOT NULL,
    next_execution   BIGINT,
    created_at       BIGINT NOT NULL,
    updated_at       BIGINT NOT NULL,
    created_by       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policies_tenant
    ON retention_policies(tenant_id, data_type);
CREATE INDEX IF NOT EXISTS idx_policies_due
    ON retention_policies(status, next_execution);

-- Append-only policy configuration history.
CREATE TABLE IF NOT EXISTS policy_config_history (
    id         TEXT PRIMARY KEY,
    policy_id  TEXT NOT NULL,
    changed_at BIGINT NOT NULL,
    changed_by TEXT NOT NULL,
    field      TEXT NOT NULL,
    old_value  TEXT NOT NULL,
    new_value  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policy_history
    ON policy_config_history(policy_id, changed_at);

-- Archive metadata. One row per stored blob; histories live in the child
-- tables below.
CREATE TABLE IF NOT EXISTS archives (
    id                       TEXT PRIMARY KEY,
    tenant_id                TEXT NOT NULL,
    data_type                TEXT NOT NULL,
    retention_policy_id      TEXT NOT NULL,
    source_collection        TEXT NOT NULL,
    record_count             BIGINT NOT NULL,
    range_start              BIGINT NOT NULL,
    range_end                BIGINT NOT NULL,
    storage_location         TEXT NOT NULL,
    storage_path             TEXT NOT NULL,
    original_size            BIGINT NOT NULL,
    compressed_size          BIGINT NOT NULL,
    checksum                 TEXT NOT NULL,
    compression_algorithm    TEXT NOT NULL,
    encryption_enabled       BOOLEAN NOT NULL,
    encryption_algorithm     TEXT NOT NULL,
    encryption_key_id        TEXT NOT NULL,
    status                   TEXT NOT NULL,
    failure_reason           TEXT NOT NULL,
    hold_active              BOOLEAN NOT NULL,
    hold_reason              TEXT NOT NULL,
    hold_placed_by           TEXT NOT NULL,
    hold_placed_at           BIGINT,
    hold_released_at         BIGINT,
    restorable               BOOLEAN NOT NULL,
    delete_after             BIGINT,
    delete_approval_required BOOLEAN NOT NULL,
    created_at               BIGINT NOT NULL,
    completed_at             BIGINT
);

CREATE INDEX IF NOT EXISTS idx_archives_tenant
    ON archives(tenant_id, data_type);
CREATE INDEX IF NOT EXISTS idx_archives_status
    ON archives(status);
CREATE INDEX IF NOT EXISTS idx_archives_policy
    ON archives(retention_policy_id);
CREATE INDEX IF NOT EXISTS idx_archives_sweep
    ON archives(delete_after);

-- Append-only archive audit trail.
CREATE TABLE IF NOT EXISTS archive_audit_trail (
    id         TEXT PRIMARY KEY,
    archive_id TEXT NOT NULL,
    event_time BIGINT NOT NULL,
    event      TEXT NOT NULL,
    actor      TEXT NOT NULL,
    details    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_archive_audit
    ON archive_audit_trail(archive_id, event_time);

-- Append-only archive access log.
CREATE TABLE IF NOT EXISTS archive_access_log (
    id          TEXT PRIMARY KEY,
    archive_id  TEXT NOT NULL,
    accessed_at BIGINT NOT NULL,
    access_type TEXT NOT NULL,
    actor       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_archive_access
    ON archive_access_log(archive_id, accessed_at);

-- Restore runs against archives.
CREATE TABLE IF NOT EXISTS archive_restorations (
    id               TEXT PRIMARY KEY,
    archive_id       TEXT NOT NULL,
    requested_by     TEXT NOT NULL,
    requested_at     BIGINT NOT NULL,
    records_restored BIGINT NOT NULL,
    total_records    BIGINT NOT NULL,
    status           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_archive_restorations
    ON archive_restorations(archive_id, requested_at);

-- Hard-deletion approvals, consumed oldest first.
CREATE TABLE IF NOT EXISTS deletion_approvals (
    id         TEXT PRIMARY KEY,
    policy_id  TEXT NOT NULL,
    approver   TEXT NOT NULL,
    granted_at BIGINT NOT NULL,
    expires_at BIGINT NOT NULL,
    used_at    BIGINT
);

CREATE INDEX IF NOT EXISTS idx_approvals_policy
    ON deletion_approvals(policy_id, used_at, expires_at);

-- Schema version tracking.
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at BIGINT NOT NULL
);
`

// InsertSchemaVersion records the schema version. The applied_at argument
// keeps the statement portable: neither dialect's now() is used.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at) VALUES (?, ?)
ON CONFLICT (version) DO NOTHING
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1
`

package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"custodia-hq/amber/pkg/archive"
	"custodia-hq/amber/pkg/datastore"
	"custodia-hq/amber/pkg/retention"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	config := DefaultConfig()
	config.DSN = filepath.Join(t.TempDir(), "amber.db")

	db, err := Open(config)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestOpenReopensExistingDatabase(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "amber.db")

	config := DefaultConfig()
	config.DSN = dsn

	db, err := Open(config)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// Schema creation and version insert must be idempotent.
	db, err = Open(config)
	if err != nil {
		t.Fatalf("Open() on existing database failed: %v", err)
	}
	db.Close()
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	config := DefaultConfig()
	config.Driver = "oracle"

	if _, err := Open(config); err == nil {
		t.Fatal("Open() accepted an unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	sqlite := &DB{driver: DriverSQLite}
	postgres := &DB{driver: DriverPostgres}

	query := "SELECT * FROM t WHERE a = ? AND b = ?"
	if got := sqlite.rebind(query); got != query {
		t.Errorf("sqlite rebind changed the query: %q", got)
	}
	want := "SELECT * FROM t WHERE a = $1 AND b = $2"
	if got := postgres.rebind(query); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func testRecord(tenantID string, occurredAt time.Time) *datastore.Record {
	return &datastore.Record{
		TenantID:   tenantID,
		OccurredAt: occurredAt,
		Payload:    map[string]any{"action": "login", "count": float64(2)},
	}
}

func TestEntityStoreInsertAndQuery(t *testing.T) {
	db := newTestDB(t)
	store := NewEntityStore(db, datastore.DataTypeAuditLogs)
	ctx := context.Background()

	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	old := testRecord("tenant-a", base.Add(-48*time.Hour))
	if err := store.Insert(ctx, old); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if old.ID == "" {
		t.Fatal("Insert() did not assign an ID")
	}

	recent := testRecord("tenant-a", base.Add(-1*time.Hour))
	if err := store.Insert(ctx, recent); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	other := testRecord("tenant-b", base.Add(-48*time.Hour))
	if err := store.Insert(ctx, other); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	results, err := store.QueryOlderThan(ctx, "tenant-a", base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("QueryOlderThan() failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("QueryOlderThan() returned %d records, want 1", len(results))
	}
	got := results[0]
	if got.ID != old.ID {
		t.Errorf("got record %q, want %q", got.ID, old.ID)
	}
	if !got.OccurredAt.Equal(old.OccurredAt) {
		t.Errorf("OccurredAt = %v, want %v", got.OccurredAt, old.OccurredAt)
	}
	if !reflect.DeepEqual(got.Payload, old.Payload) {
		t.Errorf("Payload = %v, want %v", got.Payload, old.Payload)
	}

	// The cutoff is exclusive.
	results, err = store.QueryOlderThan(ctx, "tenant-a", old.OccurredAt)
	if err != nil {
		t.Fatalf("QueryOlderThan() failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("record at the cutoff instant was returned")
	}

	count, err := store.CountOlderThan(ctx, "tenant-a", base)
	if err != nil {
		t.Fatalf("CountOlderThan() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("CountOlderThan() = %d, want 2", count)
	}
}

func TestEntityStoreQueryBetween(t *testing.T) {
	db := newTestDB(t)
	store := NewEntityStore(db, datastore.DataTypeTransactions)
	ctx := context.Background()

	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)

	atStart := testRecord("tenant-a", start)
	beforeEnd := testRecord("tenant-a", end.Add(-time.Nanosecond))
	atEnd := testRecord("tenant-a", end)
	for _, r := range []*datastore.Record{atStart, beforeEnd, atEnd} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert() failed: %v", err)
		}
	}

	results, err := store.QueryBetween(ctx, "tenant-a", start, end)
	if err != nil {
		t.Fatalf("QueryBetween() failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("QueryBetween() returned %d records, want 2 (start inclusive, end exclusive)", len(results))
	}

	// Soft-deleted and already-archived records drop out of the window.
	if _, err := store.SoftDelete(ctx, "tenant-a", []string{atStart.ID}, datastore.DeletionMark{
		DeletedAt: end, DeletedBy: "test", Reason: "expired",
	}); err != nil {
		t.Fatalf("SoftDelete() failed: %v", err)
	}
	if _, err := store.MarkArchived(ctx, "tenant-a", []string{beforeEnd.ID}, "ARC-TEST", end); err != nil {
		t.Fatalf("MarkArchived() failed: %v", err)
	}

	results, err = store.QueryBetween(ctx, "tenant-a", start, end)
	if err != nil {
		t.Fatalf("QueryBetween() failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("QueryBetween() returned %d records after delete/archive, want 0", len(results))
	}

	// Archived records stay visible to the deletion query.
	older, err := store.QueryOlderThan(ctx, "tenant-a", end.Add(time.Hour))
	if err != nil {
		t.Fatalf("QueryOlderThan() failed: %v", err)
	}
	if len(older) != 2 {
		t.Errorf("QueryOlderThan() returned %d records, want 2 (archived rows still age out)", len(older))
	}
	for _, r := range older {
		if r.ID == beforeEnd.ID {
			if r.ArchiveID != "ARC-TEST" {
				t.Errorf("ArchiveID = %q, want ARC-TEST", r.ArchiveID)
			}
			if r.ArchivedAt == nil || !r.ArchivedAt.Equal(end) {
				t.Errorf("ArchivedAt = %v, want %v", r.ArchivedAt, end)
			}
		}
	}
}

func TestEntityStoreSoftDeleteAndPurge(t *testing.T) {
	db := newTestDB(t)
	store := NewEntityStore(db, datastore.DataTypeMessages)
	ctx := context.Background()

	occurred := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	deletedAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	r := testRecord("tenant-a", occurred)
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	mark := datastore.DeletionMark{DeletedAt: deletedAt, DeletedBy: "svc", Reason: "aged out"}
	affected, err := store.SoftDelete(ctx, "tenant-a", []string{r.ID}, mark)
	if err != nil {
		t.Fatalf("SoftDelete() failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("SoftDelete() affected %d rows, want 1", affected)
	}

	// A second soft delete of the same record is a no-op.
	affected, err = store.SoftDelete(ctx, "tenant-a", []string{r.ID}, mark)
	if err != nil {
		t.Fatalf("SoftDelete() failed: %v", err)
	}
	if affected != 0 {
		t.Errorf("second SoftDelete() affected %d rows, want 0", affected)
	}

	// Purge honors the mark's deletion time, cutoff exclusive.
	purged, err := store.PurgeSoftDeleted(ctx, "tenant-a", deletedAt)
	if err != nil {
		t.Fatalf("PurgeSoftDeleted() failed: %v", err)
	}
	if purged != 0 {
		t.Errorf("PurgeSoftDeleted() at the mark instant purged %d rows, want 0", purged)
	}

	purged, err = store.PurgeSoftDeleted(ctx, "tenant-a", deletedAt.Add(time.Nanosecond))
	if err != nil {
		t.Fatalf("PurgeSoftDeleted() failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("PurgeSoftDeleted() purged %d rows, want 1", purged)
	}
}

func TestEntityStoreHardDelete(t *testing.T) {
	db := newTestDB(t)
	store := NewEntityStore(db, datastore.DataTypeDocuments)
	ctx := context.Background()

	r := testRecord("tenant-a", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	deleted, err := store.HardDelete(ctx, "tenant-b", []string{r.ID})
	if err != nil {
		t.Fatalf("HardDelete() failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("HardDelete() crossed tenants: deleted %d rows", deleted)
	}

	deleted, err = store.HardDelete(ctx, "tenant-a", []string{r.ID, "no-such-id"})
	if err != nil {
		t.Fatalf("HardDelete() failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("HardDelete() deleted %d rows, want 1", deleted)
	}

	deleted, err = store.HardDelete(ctx, "tenant-a", nil)
	if err != nil {
		t.Fatalf("HardDelete() with no ids failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("HardDelete() with no ids deleted %d rows", deleted)
	}
}

func TestEntityStoreRejectsEmptyTenant(t *testing.T) {
	db := newTestDB(t)
	store := NewEntityStore(db, datastore.DataTypeAuditLogs)
	ctx := context.Background()
	now := time.Now()

	checks := []struct {
		name string
		call func() error
	}{
		{"insert", func() error { return store.Insert(ctx, &datastore.Record{OccurredAt: now}) }},
		{"query_older_than", func() error { _, err := store.QueryOlderThan(ctx, "", now); return err }},
		{"query_between", func() error { _, err := store.QueryBetween(ctx, "", now, now); return err }},
		{"count_older_than", func() error { _, err := store.CountOlderThan(ctx, "", now); return err }},
		{"soft_delete", func() error {
			_, err := store.SoftDelete(ctx, "", []string{"x"}, datastore.DeletionMark{})
			return err
		}},
		{"hard_delete", func() error { _, err := store.HardDelete(ctx, "", []string{"x"}); return err }},
		{"purge", func() error { _, err := store.PurgeSoftDeleted(ctx, "", now); return err }},
		{"mark_archived", func() error { _, err := store.MarkArchived(ctx, "", []string{"x"}, "a", now); return err }},
	}

	for _, check := range checks {
		var invalidTenant *datastore.InvalidTenantError
		if err := check.call(); !errors.As(err, &invalidTenant) {
			t.Errorf("%s: got %v, want InvalidTenantError", check.name, err)
		}
	}
}

func testPolicy(id string) *retention.RetentionPolicy {
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	next := time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC)
	return &retention.RetentionPolicy{
		ID:              id,
		TenantID:        "tenant-a",
		DataType:        datastore.DataTypeAuditLogs,
		RetentionPeriod: retention.Period{Value: 90, Unit: retention.UnitDays},
		Archival: retention.Archival{
			Enabled:      true,
			ArchiveAfter: retention.Period{Value: 30, Unit: retention.UnitDays},
			Location:     "local",
			Compression:  retention.Compression{Enabled: true, Algorithm: "gzip"},
			Encryption:   retention.Encryption{Enabled: true, Algorithm: "aes-256-gcm"},
		},
		Deletion: retention.Deletion{
			SoftDelete:      true,
			HardDeleteAfter: retention.Period{Value: 30, Unit: retention.UnitDays},
			RequireApproval: true,
			Approvers:       []string{"compliance-team"},
		},
		Legal: retention.Legal{
			MinRetention: retention.Period{Value: 30, Unit: retention.UnitDays},
			MaxRetention: retention.Period{Value: 7, Unit: retention.UnitYears},
			Jurisdiction: "EU",
			Framework:    "GDPR",
		},
		Schedule:      retention.ExecutionSchedule{Frequency: retention.FrequencyDaily, Time: "02:00"},
		Status:        retention.StatusActive,
		NextExecution: &next,
		CreatedAt:     created,
		UpdatedAt:     created,
		CreatedBy:     "admin",
	}
}

func TestPolicyStoreRoundtrip(t *testing.T) {
	db := newTestDB(t)
	store := NewPolicyStore(db)
	ctx := context.Background()

	policy := testPolicy("pol-1")
	if err := store.Create(ctx, policy); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	got, err := store.Get(ctx, "pol-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if got.TenantID != policy.TenantID || got.DataType != policy.DataType {
		t.Errorf("scope = %s/%s, want %s/%s", got.TenantID, got.DataType, policy.TenantID, policy.DataType)
	}
	if got.RetentionPeriod != policy.RetentionPeriod {
		t.Errorf("RetentionPeriod = %v, want %v", got.RetentionPeriod, policy.RetentionPeriod)
	}
	if !reflect.DeepEqual(got.Archival, policy.Archival) {
		t.Errorf("Archival = %+v, want %+v", got.Archival, policy.Archival)
	}
	if !reflect.DeepEqual(got.Deletion, policy.Deletion) {
		t.Errorf("Deletion = %+v, want %+v", got.Deletion, policy.Deletion)
	}
	if !reflect.DeepEqual(got.Legal, policy.Legal) {
		t.Errorf("Legal = %+v, want %+v", got.Legal, policy.Legal)
	}
	if !reflect.DeepEqual(got.Schedule, policy.Schedule) {
		t.Errorf("Schedule = %+v, want %+v", got.Schedule, policy.Schedule)
	}
	if got.Status != retention.StatusActive {
		t.Errorf("Status = %q, want active", got.Status)
	}
	if got.NextExecution == nil || !got.NextExecution.Equal(*policy.NextExecution) {
		t.Errorf("NextExecution = %v, want %v", got.NextExecution, policy.NextExecution)
	}
	if !got.CreatedAt.Equal(policy.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, policy.CreatedAt)
	}

	if _, err := store.Get(ctx, "no-such-policy"); err == nil {
		t.Fatal("Get() found a policy that does not exist")
	} else {
		var notFound *retention.NotFoundError
		if !errors.As(err, &notFound) {
			t.Errorf("Get() error = %v, want NotFoundError", err)
		}
	}
}

func TestPolicyStoreUpdatePreservesStatistics(t *testing.T) {
	db := newTestDB(t)
	store := NewPolicyStore(db)
	ctx := context.Background()

	policy := testPolicy("pol-1")
	if err := store.Create(ctx, policy); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	stats := retention.Statistics{
		Processed:    100,
		Archived:     40,
		Deleted:      60,
		SuccessCount: 3,
		LastRunAt:    time.Date(2024, 4, 1, 2, 0, 0, 0, time.UTC),
	}
	next := time.Date(2024, 4, 2, 2, 0, 0, 0, time.UTC)
	if err := store.UpdateStatistics(ctx, "pol-1", stats, &next); err != nil {
		t.Fatalf("UpdateStatistics() failed: %v", err)
	}

	// A config update carries zero statistics; the stored counters survive.
	updated := testPolicy("pol-1")
	updated.RetentionPeriod = retention.Period{Value: 180, Unit: retention.UnitDays}
	if err := store.Update(ctx, updated); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	got, err := store.Get(ctx, "pol-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.RetentionPeriod.Value != 180 {
		t.Errorf("RetentionPeriod.Value = %d, want 180", got.RetentionPeriod.Value)
	}
	if got.Statistics.Processed != 100 || got.Statistics.SuccessCount != 3 {
		t.Errorf("Update() clobbered statistics: %+v", got.Statistics)
	}
	if !got.Statistics.LastRunAt.Equal(stats.LastRunAt) {
		t.Errorf("LastRunAt = %v, want %v", got.Statistics.LastRunAt, stats.LastRunAt)
	}

	missing := testPolicy("no-such-policy")
	var notFound *retention.NotFoundError
	if err := store.Update(ctx, missing); !errors.As(err, &notFound) {
		t.Errorf("Update() on missing policy = %v, want NotFoundError", err)
	}
	if err := store.UpdateStatistics(ctx, "no-such-policy", stats, nil); !errors.As(err, &notFound) {
		t.Errorf("UpdateStatistics() on missing policy = %v, want NotFoundError", err)
	}
}

func TestPolicyStoreListAndDue(t *testing.T) {
	db := newTestDB(t)
	store := NewPolicyStore(db)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	fresh := testPolicy("pol-1") // never executed
	fresh.NextExecution = nil

	due := testPolicy("pol-2")
	due.NextExecution = &past

	notDue := testPolicy("pol-3")
	notDue.NextExecution = &future

	inactive := testPolicy("pol-4")
	inactive.NextExecution = nil
	inactive.Status = retention.StatusInactive
	inactive.TenantID = "tenant-b"

	for _, p := range []*retention.RetentionPolicy{fresh, due, notDue, inactive} {
		if err := store.Create(ctx, p); err != nil {
			t.Fatalf("Create(%s) failed: %v", p.ID, err)
		}
	}

	all, err := store.List(ctx, retention.PolicyFilter{})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("List() returned %d policies, want 4", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID > all[i].ID {
			t.Fatalf("List() not ordered by ID: %s before %s", all[i-1].ID, all[i].ID)
		}
	}

	byTenant, err := store.List(ctx, retention.PolicyFilter{TenantID: "tenant-b"})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(byTenant) != 1 || byTenant[0].ID != "pol-4" {
		t.Errorf("List(tenant-b) = %d policies, want [pol-4]", len(byTenant))
	}

	byStatus, err := store.List(ctx, retention.PolicyFilter{Status: retention.StatusActive})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(byStatus) != 3 {
		t.Errorf("List(active) = %d policies, want 3", len(byStatus))
	}

	dueList, err := store.ListDue(ctx, now)
	if err != nil {
		t.Fatalf("ListDue() failed: %v", err)
	}
	if len(dueList) != 2 {
		t.Fatalf("ListDue() returned %d policies, want 2", len(dueList))
	}
	if dueList[0].ID != "pol-1" || dueList[1].ID != "pol-2" {
		t.Errorf("ListDue() = [%s %s], want [pol-1 pol-2]", dueList[0].ID, dueList[1].ID)
	}
}

func TestPolicyStoreConfigHistory(t *testing.T) {
	db := newTestDB(t)
	store := NewPolicyStore(db)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	first := &retention.ConfigChange{
		PolicyID:  "pol-1",
		ChangedAt: base,
		ChangedBy: "admin",
		Field:     "retentionPeriod",
		OldValue:  "90 days",
		NewValue:  "180 days",
	}
	second := &retention.ConfigChange{
		PolicyID:  "pol-1",
		ChangedAt: base.Add(time.Minute),
		ChangedBy: "admin",
		Field:     "status",
		OldValue:  "active",
		NewValue:  "suspended",
	}

	for _, change := range []*retention.ConfigChange{second, first} {
		if err := store.AppendConfigChange(ctx, change); err != nil {
			t.Fatalf("AppendConfigChange() failed: %v", err)
		}
	}

	history, err := store.ConfigHistory(ctx, "pol-1")
	if err != nil {
		t.Fatalf("ConfigHistory() failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("ConfigHistory() returned %d changes, want 2", len(history))
	}
	if history[0].Field != "retentionPeriod" || history[1].Field != "status" {
		t.Errorf("ConfigHistory() not oldest first: [%s %s]", history[0].Field, history[1].Field)
	}
	if history[0].ID == "" {
		t.Error("AppendConfigChange() did not assign an ID")
	}
}

func testArchiveRow(id string) *archive.Archive {
	created := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	return &archive.Archive{
		ID:                id,
		TenantID:          "tenant-a",
		DataType:          datastore.DataTypeAuditLogs,
		RetentionPolicyID: "pol-1",
		SourceCollection:  "audit_logs",
		RecordCount:       250,
		DateRange: archive.DateRange{
			Start: created.AddDate(0, -2, 0),
			End:   created.AddDate(0, -1, 0),
		},
		Storage: archive.StorageInfo{Location: "local", Path: "tenant-a/audit_logs/" + id + ".json.gz"},
		FileInfo: archive.FileInfo{
			OriginalSize:   4096,
			CompressedSize: 512,
			Checksum:       "abc123",
			Algorithm:      "gzip",
		},
		Encryption: archive.EncryptionInfo{Enabled: true, Algorithm: "aes-256-gcm", KeyID: "key-1"},
		Restorable: true,
		ScheduledDeletion: archive.ScheduledDeletion{
			DeleteAfter:      timePtr(created.AddDate(0, 1, 0)),
			ApprovalRequired: true,
		},
		CreatedAt: created,
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestArchiveStoreLifecycle(t *testing.T) {
	db := newTestDB(t)
	store := NewArchiveStore(db)
	ctx := context.Background()

	a := testArchiveRow("ARC-1")
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if a.Status != archive.StatusCreating {
		t.Errorf("Insert() left status %q, want creating", a.Status)
	}

	got, err := store.Get(ctx, "ARC-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Status != archive.StatusCreating {
		t.Errorf("Status = %q, want creating", got.Status)
	}
	if got.FileInfo != a.FileInfo {
		t.Errorf("FileInfo = %+v, want %+v", got.FileInfo, a.FileInfo)
	}
	if got.Encryption != a.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, a.Encryption)
	}
	if !got.DateRange.Start.Equal(a.DateRange.Start) || !got.DateRange.End.Equal(a.DateRange.End) {
		t.Errorf("DateRange = %+v, want %+v", got.DateRange, a.DateRange)
	}
	if got.ScheduledDeletion.DeleteAfter == nil ||
		!got.ScheduledDeletion.DeleteAfter.Equal(*a.ScheduledDeletion.DeleteAfter) {
		t.Errorf("DeleteAfter = %v, want %v", got.ScheduledDeletion.DeleteAfter, a.ScheduledDeletion.DeleteAfter)
	}
	if !got.ScheduledDeletion.ApprovalRequired {
		t.Error("ApprovalRequired not persisted")
	}

	// Final sizes land with the completion.
	a.FileInfo.CompressedSize = 640
	if err := store.MarkCompleted(ctx, a); err != nil {
		t.Fatalf("MarkCompleted() failed: %v", err)
	}
	if a.Status != archive.StatusCompleted || a.CompletedAt == nil {
		t.Errorf("MarkCompleted() did not update the caller: status=%q completedAt=%v", a.Status, a.CompletedAt)
	}

	got, err = store.Get(ctx, "ARC-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Status != archive.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.FileInfo.CompressedSize != 640 {
		t.Errorf("CompressedSize = %d, want 640", got.FileInfo.CompressedSize)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not persisted")
	}

	var stateErr *archive.StateError
	if err := store.MarkCompleted(ctx, a); !errors.As(err, &stateErr) {
		t.Errorf("second MarkCompleted() = %v, want StateError", err)
	}
	if err := store.MarkFailed(ctx, "ARC-1", "boom"); !errors.As(err, &stateErr) {
		t.Errorf("MarkFailed() on completed archive = %v, want StateError", err)
	}

	var notFound *archive.NotFoundError
	if err := store.MarkFailed(ctx, "no-such-archive", "boom"); !errors.As(err, &notFound) {
		t.Errorf("MarkFailed() on missing archive = %v, want NotFoundError", err)
	}
}

func TestArchiveStoreMarkFailed(t *testing.T) {
	db := newTestDB(t)
	store := NewArchiveStore(db)
	ctx := context.Background()

	a := testArchiveRow("ARC-1")
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if err := store.MarkFailed(ctx, "ARC-1", "blob write failed"); err != nil {
		t.Fatalf("MarkFailed() failed: %v", err)
	}

	got, err := store.Get(ctx, "ARC-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Status != archive.StatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if got.FailureReason != "blob write failed" {
		t.Errorf("FailureReason = %q", got.FailureReason)
	}
}

func TestArchiveStoreUpdateStatusGuard(t *testing.T) {
	db := newTestDB(t)
	store := NewArchiveStore(db)
	ctx := context.Background()

	a := testArchiveRow("ARC-1")
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if err := store.MarkCompleted(ctx, a); err != nil {
		t.Fatalf("MarkCompleted() failed: %v", err)
	}

	if err := store.UpdateStatus(ctx, "ARC-1", archive.StatusCompleted, archive.StatusVerifying); err != nil {
		t.Fatalf("UpdateStatus() failed: %v", err)
	}

	var stateErr *archive.StateError
	err := store.UpdateStatus(ctx, "ARC-1", archive.StatusCompleted, archive.StatusVerifying)
	if !errors.As(err, &stateErr) {
		t.Fatalf("UpdateStatus() with stale from = %v, want StateError", err)
	}
	if stateErr.Status != archive.StatusVerifying {
		t.Errorf("StateError.Status = %q, want verifying", stateErr.Status)
	}

	var notFound *archive.NotFoundError
	err = store.UpdateStatus(ctx, "no-such-archive", archive.StatusCompleted, archive.StatusVerifying)
	if !errors.As(err, &notFound) {
		t.Errorf("UpdateStatus() on missing archive = %v, want NotFoundError", err)
	}
}

func TestArchiveStoreLegalHoldAndList(t *testing.T) {
	db := newTestDB(t)
	store := NewArchiveStore(db)
	ctx := context.Background()

	first := testArchiveRow("ARC-1")
	second := testArchiveRow("ARC-2")
	second.CreatedAt = first.CreatedAt.Add(time.Hour)
	second.RetentionPolicyID = "pol-2"
	third := testArchiveRow("ARC-3")
	third.CreatedAt = first.CreatedAt.Add(2 * time.Hour)
	third.TenantID = "tenant-b"

	for _, a := range []*archive.Archive{first, second, third} {
		if err := store.Insert(ctx, a); err != nil {
			t.Fatalf("Insert(%s) failed: %v", a.ID, err)
		}
	}

	placedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	hold := archive.LegalHold{
		IsOnHold: true,
		Reason:   "litigation",
		PlacedBy: "legal-team",
		PlacedAt: &placedAt,
	}
	if err := store.SetLegalHold(ctx, "ARC-1", hold); err != nil {
		t.Fatalf("SetLegalHold() failed: %v", err)
	}

	got, err := store.Get(ctx, "ARC-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !got.LegalHold.IsOnHold || got.LegalHold.Reason != "litigation" {
		t.Errorf("LegalHold = %+v", got.LegalHold)
	}
	if got.LegalHold.PlacedAt == nil || !got.LegalHold.PlacedAt.Equal(placedAt) {
		t.Errorf("PlacedAt = %v, want %v", got.LegalHold.PlacedAt, placedAt)
	}

	releasedAt := placedAt.Add(48 * time.Hour)
	release := got.LegalHold
	release.IsOnHold = false
	release.ReleasedAt = &releasedAt
	if err := store.SetLegalHold(ctx, "ARC-1", release); err != nil {
		t.Fatalf("SetLegalHold() release failed: %v", err)
	}
	got, err = store.Get(ctx, "ARC-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.LegalHold.IsOnHold {
		t.Error("hold still active after release")
	}
	if got.LegalHold.ReleasedAt == nil {
		t.Error("ReleasedAt not persisted")
	}

	all, err := store.List(ctx, archive.Filter{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List(tenant-a) returned %d archives, want 2", len(all))
	}
	if all[0].ID != "ARC-1" || all[1].ID != "ARC-2" {
		t.Errorf("List() order = [%s %s], want creation order", all[0].ID, all[1].ID)
	}

	byPolicy, err := store.List(ctx, archive.Filter{RetentionPolicyID: "pol-2"})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(byPolicy) != 1 || byPolicy[0].ID != "ARC-2" {
		t.Errorf("List(pol-2) = %d archives, want [ARC-2]", len(byPolicy))
	}
}

func TestArchiveStoreChildRows(t *testing.T) {
	db := newTestDB(t)
	store := NewArchiveStore(db)
	ctx := context.Background()

	a := testArchiveRow("ARC-1")
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	events := []archive.AuditEvent{
		{ArchiveID: "ARC-1", Timestamp: base, Event: "created", Actor: "svc", Details: "250 records"},
		{ArchiveID: "ARC-1", Timestamp: base.Add(time.Minute), Event: "verified", Actor: "svc"},
	}
	for _, e := range events {
		if err := store.AppendAuditEvent(ctx, e); err != nil {
			t.Fatalf("AppendAuditEvent() failed: %v", err)
		}
	}

	trail, err := store.AuditTrail(ctx, "ARC-1")
	if err != nil {
		t.Fatalf("AuditTrail() failed: %v", err)
	}
	if len(trail) != 2 {
		t.Fatalf("AuditTrail() returned %d events, want 2", len(trail))
	}
	if trail[0].Event != "created" || trail[1].Event != "verified" {
		t.Errorf("AuditTrail() order = [%s %s]", trail[0].Event, trail[1].Event)
	}
	if trail[0].ID == "" {
		t.Error("AppendAuditEvent() did not assign an ID")
	}
	if trail[0].Details != "250 records" {
		t.Errorf("Details = %q", trail[0].Details)
	}

	if err := store.AppendAccessEvent(ctx, archive.AccessEvent{
		ArchiveID: "ARC-1", Timestamp: base, Type: archive.AccessVerify, Actor: "svc",
	}); err != nil {
		t.Fatalf("AppendAccessEvent() failed: %v", err)
	}
	accessLog, err := store.AccessLog(ctx, "ARC-1")
	if err != nil {
		t.Fatalf("AccessLog() failed: %v", err)
	}
	if len(accessLog) != 1 || accessLog[0].Type != archive.AccessVerify {
		t.Errorf("AccessLog() = %+v", accessLog)
	}

	if err := store.AppendRestoration(ctx, archive.Restoration{
		ArchiveID:       "ARC-1",
		RequestedBy:     "operator",
		RequestedAt:     base,
		RecordsRestored: 250,
		TotalRecords:    250,
		Status:          "success",
	}); err != nil {
		t.Fatalf("AppendRestoration() failed: %v", err)
	}
	restorations, err := store.Restorations(ctx, "ARC-1")
	if err != nil {
		t.Fatalf("Restorations() failed: %v", err)
	}
	if len(restorations) != 1 || restorations[0].RecordsRestored != 250 {
		t.Errorf("Restorations() = %+v", restorations)
	}

	// Child rows of other archives stay invisible.
	otherTrail, err := store.AuditTrail(ctx, "ARC-2")
	if err != nil {
		t.Fatalf("AuditTrail() failed: %v", err)
	}
	if len(otherTrail) != 0 {
		t.Errorf("AuditTrail(ARC-2) returned %d events, want 0", len(otherTrail))
	}
}

func TestApprovalStoreConsume(t *testing.T) {
	db := newTestDB(t)
	store := NewApprovalStore(db)
	ctx := context.Background()

	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	expired := &retention.Approval{
		PolicyID:  "pol-1",
		Approver:  "alice",
		GrantedAt: now.Add(-72 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	older := &retention.Approval{
		PolicyID:  "pol-1",
		Approver:  "bob",
		GrantedAt: now.Add(-48 * time.Hour),
		ExpiresAt: now.Add(24 * time.Hour),
	}
	newer := &retention.Approval{
		PolicyID:  "pol-1",
		Approver:  "carol",
		GrantedAt: now.Add(-24 * time.Hour),
		ExpiresAt: now.Add(24 * time.Hour),
	}
	otherPolicy := &retention.Approval{
		PolicyID:  "pol-2",
		Approver:  "dave",
		GrantedAt: now.Add(-96 * time.Hour),
		ExpiresAt: now.Add(24 * time.Hour),
	}

	for _, approval := range []*retention.Approval{expired, older, newer, otherPolicy} {
		if err := store.Grant(ctx, approval); err != nil {
			t.Fatalf("Grant() failed: %v", err)
		}
	}

	first, err := store.Consume(ctx, "pol-1", now)
	if err != nil {
		t.Fatalf("Consume() failed: %v", err)
	}
	if first == nil {
		t.Fatal("Consume() returned nil with approvals available")
	}
	if first.Approver != "bob" {
		t.Errorf("Consume() took %q, want the oldest unexpired (bob)", first.Approver)
	}
	if first.UsedAt == nil || !first.UsedAt.Equal(now) {
		t.Errorf("UsedAt = %v, want %v", first.UsedAt, now)
	}

	second, err := store.Consume(ctx, "pol-1", now)
	if err != nil {
		t.Fatalf("Consume() failed: %v", err)
	}
	if second == nil || second.Approver != "carol" {
		t.Fatalf("second Consume() = %+v, want carol", second)
	}

	third, err := store.Consume(ctx, "pol-1", now)
	if err != nil {
		t.Fatalf("Consume() failed: %v", err)
	}
	if third != nil {
		t.Errorf("Consume() with none left = %+v, want nil", third)
	}
}

func TestRegistryBuildsStores(t *testing.T) {
	db := newTestDB(t)
	registry := NewRegistry(db, datastore.BuiltinDataTypes())

	types := registry.DataTypes()
	if len(types) != len(datastore.BuiltinDataTypes()) {
		t.Fatalf("DataTypes() returned %d types, want %d", len(types), len(datastore.BuiltinDataTypes()))
	}

	store, err := registry.Store(datastore.DataTypeMessages)
	if err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	if store.Collection() != "messages" {
		t.Errorf("Collection() = %q, want messages", store.Collection())
	}

	if _, err := registry.Store("unknown"); err == nil {
		t.Error("Store() resolved an unregistered data type")
	}
}

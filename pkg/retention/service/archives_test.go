package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"custodia-hq/amber/pkg/archive"
	"custodia-hq/amber/pkg/datastore"
	"custodia-hq/amber/pkg/retention"
)

// runArchivingPolicy seeds records inside the archive window and runs the
// policy once, returning the archive it produced.
func runArchivingPolicy(t *testing.T, env *testEnv, encrypt bool) (*retention.RetentionPolicy, *archive.Archive) {
	t.Helper()
	ctx := context.Background()

	policy := basicPolicy("tenant-a", datastore.DataTypeAuditLogs)
	policy.Archival = retention.Archival{
		Enabled:      true,
		ArchiveAfter: retention.Period{Value: 7, Unit: retention.UnitDays},
		Compression:  retention.Compression{Enabled: true, Algorithm: "gzip"},
	}
	if encrypt {
		policy.Archival.Encryption = retention.Encryption{Enabled: true, Algorithm: "aes-gcm"}
	}
	policy = env.createPolicy(t, policy)

	env.seedRecord(t, datastore.DataTypeAuditLogs, "tenant-a", days(10))
	env.seedRecord(t, datastore.DataTypeAuditLogs, "tenant-a", days(14))

	summary, err := env.service.ExecutePolicy(ctx, policy.ID)
	if err != nil {
		t.Fatalf("ExecutePolicy() failed: %v", err)
	}
	if summary.Archived != 2 {
		t.Fatalf("archived = %d, want 2", summary.Archived)
	}

	archives, err := env.service.ListArchives(ctx, archive.Filter{RetentionPolicyID: policy.ID})
	if err != nil {
		t.Fatalf("ListArchives() failed: %v", err)
	}
	if len(archives) != 1 {
		t.Fatalf("got %d archives, want 1", len(archives))
	}
	return policy, archives[0]
}

func TestRestoreArchiveBringsRecordsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, created := runArchivingPolicy(t, env, true)

	store := env.memStore(t, datastore.DataTypeAuditLogs)
	before := store.Size()

	result, err := env.service.RestoreArchive(ctx, created.ID, "investigator")
	if err != nil {
		t.Fatalf("RestoreArchive() failed: %v", err)
	}
	if result.Status != "success" || result.RecordsRestored != 2 || result.TotalRecords != 2 {
		t.Fatalf("result = %+v, want full restore of 2 records", result)
	}
	if store.Size() != before+2 {
		t.Fatalf("store size = %d, want %d", store.Size(), before+2)
	}

	// Restored copies carry provenance so the next run does not archive
	// them again.
	restored, err := store.QueryOlderThan(ctx, "tenant-a", time.Now().UTC())
	if err != nil {
		t.Fatalf("QueryOlderThan() failed: %v", err)
	}
	provenance := 0
	for _, record := range restored {
		if record.ArchiveID == created.ID && record.ArchivedAt != nil {
			provenance++
		}
	}
	if provenance < 2 {
		t.Fatalf("found %d records with restore provenance, want at least 2", provenance)
	}

	state, err := env.chain.State("archives")
	if err != nil {
		t.Fatalf("State() failed: %v", err)
	}
	if state.TotalEntries == 0 {
		t.Fatal("restore left no trace on the archives chain")
	}

	restorations, err := env.archives.Restorations(ctx, created.ID)
	if err != nil {
		t.Fatalf("Restorations() failed: %v", err)
	}
	if len(restorations) != 1 || restorations[0].RequestedBy != "investigator" {
		t.Fatalf("restorations = %+v, want one request by investigator", restorations)
	}
}

func TestVerifyArchiveDetectsTampering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, created := runArchivingPolicy(t, env, false)

	valid, err := env.service.VerifyArchive(ctx, created.ID, "auditor")
	if err != nil {
		t.Fatalf("VerifyArchive() failed: %v", err)
	}
	if !valid {
		t.Fatal("fresh archive should verify")
	}
	got, err := env.service.GetArchive(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetArchive() failed: %v", err)
	}
	if got.Status != archive.StatusVerified {
		t.Fatalf("status = %s, want %s", got.Status, archive.StatusVerified)
	}

	blobPath := filepath.Join(env.blobDir, created.Storage.Path)
	if err := os.WriteFile(blobPath, []byte("tampered"), 0600); err != nil {
		t.Fatalf("tampering failed: %v", err)
	}

	valid, err = env.service.VerifyArchive(ctx, created.ID, "auditor")
	if valid {
		t.Fatal("tampered archive should not verify")
	}
	var integrity *archive.IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("error = %v, want IntegrityError", err)
	}
	got, err = env.service.GetArchive(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetArchive() failed: %v", err)
	}
	if got.Status != archive.StatusCorrupted {
		t.Fatalf("status = %s, want %s", got.Status, archive.StatusCorrupted)
	}
}

func TestLegalHoldBlocksSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	policy := env.createPolicy(t, basicPolicy("tenant-a", datastore.DataTypeAuditLogs))

	past := time.Now().UTC().Add(-time.Hour)
	path := "tenant-a/audit_logs/ARC-HOLD.json"
	if err := env.blobs.Write(ctx, path, []byte(`{"records":[]}`)); err != nil {
		t.Fatalf("blob write failed: %v", err)
	}
	created := &archive.Archive{
		ID:                "ARC-HOLD",
		TenantID:          "tenant-a",
		DataType:          datastore.DataTypeAuditLogs,
		RetentionPolicyID: policy.ID,
		Status:            archive.StatusCompleted,
		Storage:           archive.StorageInfo{Location: "local", Path: path},
		ScheduledDeletion: archive.ScheduledDeletion{DeleteAfter: &past},
		CreatedAt:         time.Now().UTC().Add(-days(45)),
	}
	if err := env.archives.Insert(ctx, created); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	if err := env.service.PlaceHold(ctx, created.ID, "litigation 2026-041", "counsel"); err != nil {
		t.Fatalf("PlaceHold() failed: %v", err)
	}
	if err := env.service.PlaceHold(ctx, created.ID, "again", "counsel"); err == nil {
		t.Fatal("PlaceHold() accepted a second hold")
	}

	summary, err := env.service.ExecutePolicy(ctx, policy.ID)
	if err != nil {
		t.Fatalf("ExecutePolicy() failed: %v", err)
	}
	if summary.SweptArchives != 0 {
		t.Fatal("sweep must skip archives on legal hold")
	}

	if err := env.service.ReleaseHold(ctx, created.ID, "counsel"); err != nil {
		t.Fatalf("ReleaseHold() failed: %v", err)
	}
	if err := env.service.ReleaseHold(ctx, created.ID, "counsel"); err == nil {
		t.Fatal("ReleaseHold() accepted an archive not on hold")
	}

	summary, err = env.service.ExecutePolicy(ctx, policy.ID)
	if err != nil {
		t.Fatalf("ExecutePolicy() failed: %v", err)
	}
	if summary.SweptArchives != 1 {
		t.Fatalf("swept %d archives after release, want 1", summary.SweptArchives)
	}

	trail, err := env.archives.AuditTrail(ctx, created.ID)
	if err != nil {
		t.Fatalf("AuditTrail() failed: %v", err)
	}
	events := map[string]bool{}
	for _, event := range trail {
		events[event.Event] = true
	}
	for _, want := range []string{"hold_placed", "hold_released", "deleted"} {
		if !events[want] {
			t.Fatalf("audit trail %v is missing %q", events, want)
		}
	}

	accessLog, err := env.archives.AccessLog(ctx, created.ID)
	if err != nil {
		t.Fatalf("AccessLog() failed: %v", err)
	}
	types := map[archive.AccessType]bool{}
	for _, access := range accessLog {
		types[access.Type] = true
	}
	if !types[archive.AccessHold] || !types[archive.AccessRelease] {
		t.Fatalf("access log %v is missing hold/release entries", types)
	}
}

func TestTenantReportAggregates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	policy, created := runArchivingPolicy(t, env, false)

	otherPolicy := basicPolicy("tenant-b", datastore.DataTypeMessages)
	env.createPolicy(t, otherPolicy)

	report, err := env.service.TenantReport(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("TenantReport() failed: %v", err)
	}
	if report.TenantID != "tenant-a" {
		t.Fatalf("TenantID = %s", report.TenantID)
	}
	if len(report.Policies) != 1 || report.Policies[0].ID != policy.ID {
		t.Fatalf("policies = %+v, want only tenant-a's policy", report.Policies)
	}
	if report.ArchivesByStatus[archive.StatusCompleted] != 1 {
		t.Fatalf("completed archives = %d, want 1", report.ArchivesByStatus[archive.StatusCompleted])
	}
	if report.StoredArchives.Count != 1 || report.StoredArchives.Records != created.RecordCount {
		t.Fatalf("stored totals = %+v, want 1 archive with %d records",
			report.StoredArchives, created.RecordCount)
	}
	if report.StoredArchives.OriginalBytes == 0 || report.StoredArchives.CompressedBytes == 0 {
		t.Fatalf("stored totals = %+v, want byte accounting", report.StoredArchives)
	}

	for _, category := range []string{"retention", "archives"} {
		head, ok := report.ChainHeads[category]
		if !ok {
			t.Fatalf("report is missing the %s chain head", category)
		}
		if category == "retention" && head.TotalEntries == 0 {
			t.Fatal("retention chain head shows no entries")
		}
	}

	if _, err := env.service.TenantReport(ctx, ""); err == nil {
		t.Fatal("TenantReport() accepted an empty tenant")
	}
}

func TestVerifyChainReportsTampering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createPolicy(t, basicPolicy("tenant-a", datastore.DataTypeAuditLogs))

	report, err := env.service.VerifyChain(ctx, "retention")
	if err != nil {
		t.Fatalf("VerifyChain() failed: %v", err)
	}
	if !report.Valid || report.TotalEntries != 1 {
		t.Fatalf("report = %+v, want valid chain with 1 entry", report)
	}
}

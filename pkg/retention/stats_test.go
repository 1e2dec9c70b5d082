package retention

import (
	"errors"
	"testing"
	"time"
)

func TestStatistics_ApplySuccess(t *testing.T) {
	var stats Statistics
	now := time.Now()

	stats.Apply(RunOutcome{
		Processed: 100,
		Archived:  40,
		Deleted:   60,
		Duration:  200 * time.Millisecond,
	}, now)

	if stats.Processed != 100 || stats.Archived != 40 || stats.Deleted != 60 {
		t.Errorf("Counters = (%d, %d, %d), want (100, 40, 60)",
			stats.Processed, stats.Archived, stats.Deleted)
	}
	if stats.SuccessCount != 1 || stats.FailureCount != 0 {
		t.Errorf("Outcome counters = (%d, %d), want (1, 0)", stats.SuccessCount, stats.FailureCount)
	}
	if stats.AvgProcessingMillis != 200 {
		t.Errorf("AvgProcessingMillis = %v, want 200", stats.AvgProcessingMillis)
	}
	if !stats.LastRunAt.Equal(now) {
		t.Errorf("LastRunAt = %v, want %v", stats.LastRunAt, now)
	}
}

func TestStatistics_ApplyIsAdditive(t *testing.T) {
	var stats Statistics
	now := time.Now()

	stats.Apply(RunOutcome{Processed: 10, Archived: 4, Deleted: 6, Duration: 100 * time.Millisecond}, now)
	stats.Apply(RunOutcome{Processed: 20, Archived: 8, Deleted: 12, Duration: 300 * time.Millisecond}, now)

	if stats.Processed != 30 || stats.Archived != 12 || stats.Deleted != 18 {
		t.Errorf("Counters = (%d, %d, %d), want (30, 12, 18)",
			stats.Processed, stats.Archived, stats.Deleted)
	}

	// Average weights by prior success count: (100*1 + 300) / 2 = 200.
	if stats.AvgProcessingMillis != 200 {
		t.Errorf("AvgProcessingMillis = %v, want 200", stats.AvgProcessingMillis)
	}
}

func TestStatistics_ApplyFailure(t *testing.T) {
	var stats Statistics
	now := time.Now()

	stats.Apply(RunOutcome{Processed: 5, Duration: time.Second, Err: errors.New("store unavailable")}, now)

	if stats.FailureCount != 1 || stats.SuccessCount != 0 {
		t.Errorf("Outcome counters = (%d, %d), want success=0 failure=1",
			stats.SuccessCount, stats.FailureCount)
	}
	if stats.LastError != "store unavailable" {
		t.Errorf("LastError = %q, want 'store unavailable'", stats.LastError)
	}
	// Failed runs still count the records they touched.
	if stats.Processed != 5 {
		t.Errorf("Processed = %d, want 5", stats.Processed)
	}
	// Failed runs never pollute the success average.
	if stats.AvgProcessingMillis != 0 {
		t.Errorf("AvgProcessingMillis = %v, want 0", stats.AvgProcessingMillis)
	}
}

func TestStatistics_SuccessClearsLastError(t *testing.T) {
	var stats Statistics
	now := time.Now()

	stats.Apply(RunOutcome{Err: errors.New("transient")}, now)
	stats.Apply(RunOutcome{Processed: 1, Duration: 50 * time.Millisecond}, now)

	if stats.LastError != "" {
		t.Errorf("LastError = %q, want cleared", stats.LastError)
	}
	if stats.SuccessCount != 1 || stats.FailureCount != 1 {
		t.Errorf("Outcome counters = (%d, %d), want (1, 1)", stats.SuccessCount, stats.FailureCount)
	}
}

func TestStatistics_ExactlyOneOutcomeCounter(t *testing.T) {
	outcomes := []RunOutcome{
		{Processed: 1, Duration: time.Millisecond},
		{Err: errors.New("boom")},
		{Processed: 3, Duration: time.Millisecond},
		{Err: errors.New("boom again")},
		{Processed: 2, Duration: time.Millisecond},
	}

	var stats Statistics
	now := time.Now()
	for _, outcome := range outcomes {
		stats.Apply(outcome, now)
	}

	if stats.SuccessCount+stats.FailureCount != int64(len(outcomes)) {
		t.Errorf("SuccessCount+FailureCount = %d, want %d",
			stats.SuccessCount+stats.FailureCount, len(outcomes))
	}
	if stats.SuccessCount != 3 || stats.FailureCount != 2 {
		t.Errorf("Outcome counters = (%d, %d), want (3, 2)", stats.SuccessCount, stats.FailureCount)
	}
}

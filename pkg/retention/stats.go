package retention

import "time"

// Statistics are a policy's cumulative run counters.
type Statistics struct {
	// Processed is the total number of records handled across all runs.
	Processed int64 `json:"processed"`

	// Archived is the total number of records copied into archives.
	Archived int64 `json:"archived"`

	// Deleted is the total number of records soft- or hard-deleted.
	Deleted int64 `json:"deleted"`

	// SuccessCount and FailureCount split completed runs by outcome.
	// Exactly one of them increments per run.
	SuccessCount int64 `json:"successCount"`
	FailureCount int64 `json:"failureCount"`

	// AvgProcessingMillis is the running average duration of successful
	// runs, in milliseconds.
	AvgProcessingMillis float64 `json:"avgProcessingTimeMs"`

	// LastError is the most recent run failure, cleared on success.
	LastError string `json:"lastError,omitempty"`

	// LastRunAt is when the most recent run finished.
	LastRunAt time.Time `json:"lastRunAt"`
}

// RunOutcome is the result of one policy run, folded into Statistics.
type RunOutcome struct {
	Processed int64
	Archived  int64
	Deleted   int64
	Duration  time.Duration
	Err       error
}

// Apply merges a run outcome into the statistics.
//
// Counters add regardless of outcome: a failed run may still have archived
// or deleted records before the failure. The duration average only folds in
// successful runs, weighted by the prior success count:
//
//	avg' = (avg*n + duration) / (n + 1)
func (s *Statistics) Apply(outcome RunOutcome, now time.Time) {
	s.Processed += outcome.Processed
	s.Archived += outcome.Archived
	s.Deleted += outcome.Deleted
	s.LastRunAt = now

	if outcome.Err != nil {
		s.FailureCount++
		s.LastError = outcome.Err.Error()
		return
	}

	n := float64(s.SuccessCount)
	millis := float64(outcome.Duration.Milliseconds())
	s.AvgProcessingMillis = (s.AvgProcessingMillis*n + millis) / (n + 1)

	s.SuccessCount++
	s.LastError = ""
}

package archive

import "fmt"

// NotFoundError is returned when an archive does not exist.
type NotFoundError struct {
	ArchiveID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("archive not found: %s", e.ArchiveID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(archiveID string) *NotFoundError {
	return &NotFoundError{ArchiveID: archiveID}
}

// StateError is returned when an operation is not valid for the archive's
// current status, such as restoring an archive that never completed.
type StateError struct {
	ArchiveID string
	Status    Status
	Operation string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("archive %s: cannot %s in status %q", e.ArchiveID, e.Operation, e.Status)
}

// NewStateError creates a new StateError.
func NewStateError(archiveID string, status Status, operation string) *StateError {
	return &StateError{
		ArchiveID: archiveID,
		Status:    status,
		Operation: operation,
	}
}

// IntegrityError is returned when a blob's checksum does not match the
// checksum recorded at creation time.
type IntegrityError struct {
	ArchiveID string
	Expected  string
	Actual    string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("archive %s: checksum mismatch: expected %s, got %s",
		e.ArchiveID, e.Expected, e.Actual)
}

// NewIntegrityError creates a new IntegrityError.
func NewIntegrityError(archiveID, expected, actual string) *IntegrityError {
	return &IntegrityError{
		ArchiveID: archiveID,
		Expected:  expected,
		Actual:    actual,
	}
}

// RestoreError is returned when a restore cannot proceed or fails for
// every record in the archive.
type RestoreError struct {
	ArchiveID string
	Reason    string
}

// Error implements the error interface.
func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore of archive %s failed: %s", e.ArchiveID, e.Reason)
}

// NewRestoreError creates a new RestoreError.
func NewRestoreError(archiveID, reason string) *RestoreError {
	return &RestoreError{
		ArchiveID: archiveID,
		Reason:    reason,
	}
}

// PipelineError is returned when archive creation fails, naming the stage
// that broke.
type PipelineError struct {
	ArchiveID string
	Stage     string
	Cause     error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("archive %s: %s failed: %v", e.ArchiveID, e.Stage, e.Cause)
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(archiveID, stage string, cause error) *PipelineError {
	return &PipelineError{
		ArchiveID: archiveID,
		Stage:     stage,
		Cause:     cause,
	}
}

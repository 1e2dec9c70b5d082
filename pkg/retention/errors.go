package retention

import "fmt"

// ConfigurationError represents an invalid retention configuration value:
// an unsupported period unit, a malformed schedule, an unknown data type.
type ConfigurationError struct {
	Field   string // Configuration field that is invalid
	Message string // What is wrong with it
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error [field=%s]: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Message: message,
	}
}

// NotFoundError indicates a retention policy that does not exist.
type NotFoundError struct {
	PolicyID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("retention policy not found: %s", e.PolicyID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(policyID string) *NotFoundError {
	return &NotFoundError{PolicyID: policyID}
}

// ExecutionError represents a failure while executing a single policy run.
// Batch runs record these in statistics and continue with the next policy.
type ExecutionError struct {
	PolicyID string // Policy whose run failed
	Phase    string // Run phase that failed ("archive", "delete", "purge", etc.)
	Cause    error  // Underlying error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("policy execution failed [policy=%s, phase=%s]: %v", e.PolicyID, e.Phase, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// NewExecutionError creates a new ExecutionError.
func NewExecutionError(policyID, phase string, cause error) *ExecutionError {
	return &ExecutionError{
		PolicyID: policyID,
		Phase:    phase,
		Cause:    cause,
	}
}

package audit

import "fmt"

// ChainError is returned when a chain operation fails.
type ChainError struct {
	Category  string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain %s: %s failed: %v", e.Category, e.Operation, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ChainError) Unwrap() error {
	return e.Cause
}

// NewChainError creates a new ChainError.
func NewChainError(category, operation string, cause error) *ChainError {
	return &ChainError{
		Category:  category,
		Operation: operation,
		Cause:     cause,
	}
}

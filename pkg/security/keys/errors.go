package keys

import "fmt"

// KeyError represents a key custody failure.
type KeyError struct {
	KeyID     string // Key involved, empty for master key operations
	Operation string // Operation that failed ("wrap", "unwrap", "load", etc.)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	if e.KeyID != "" {
		return fmt.Sprintf("key error [key_id=%s, operation=%s]: %v", e.KeyID, e.Operation, e.Cause)
	}
	return fmt.Sprintf("key error [operation=%s]: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *KeyError) Unwrap() error {
	return e.Cause
}

// NewKeyError creates a new KeyError.
func NewKeyError(keyID, operation string, cause error) *KeyError {
	return &KeyError{
		KeyID:     keyID,
		Operation: operation,
		Cause:     cause,
	}
}

// KeyNotFoundError indicates a key ID with no persisted key material.
type KeyNotFoundError struct {
	KeyID string
}

// Error implements the error interface.
func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key not found: %s", e.KeyID)
}

// NewKeyNotFoundError creates a new KeyNotFoundError.
func NewKeyNotFoundError(keyID string) *KeyNotFoundError {
	return &KeyNotFoundError{KeyID: keyID}
}

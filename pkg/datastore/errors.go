package datastore

import "fmt"

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // Storage backend type ("sqlite", "postgres", "memory")
	Operation string // Operation that failed ("insert", "query", "delete", etc.)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// UnknownDataTypeError indicates a data type that was never registered.
type UnknownDataTypeError struct {
	DataType DataType
}

// Error implements the error interface.
func (e *UnknownDataTypeError) Error() string {
	return fmt.Sprintf("unknown data type: %s", e.DataType)
}

// NewUnknownDataTypeError creates a new UnknownDataTypeError.
func NewUnknownDataTypeError(dataType DataType) *UnknownDataTypeError {
	return &UnknownDataTypeError{DataType: dataType}
}

// InvalidTenantError indicates an operation attempted without a tenant scope.
type InvalidTenantError struct {
	Operation string
}

// Error implements the error interface.
func (e *InvalidTenantError) Error() string {
	return fmt.Sprintf("tenant ID is required for %s", e.Operation)
}

// NewInvalidTenantError creates a new InvalidTenantError.
func NewInvalidTenantError(operation string) *InvalidTenantError {
	return &InvalidTenantError{Operation: operation}
}

package storage

import (
	"errors"
	"fmt"
)

// StoreError is a replica store failure carrying a structured error code.
// Codes use the RC-STOR-NNNN form; 4xxx are caller-side problems (bad
// location), 5xxx are failures raised by the store itself.
type StoreError struct {
	Code    string // Error code (e.g., "RC-STOR-4040")
	Message string // Human-readable message
	Path    string // Store location the failure refers to
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is matches any StoreError with the same code.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// At returns a copy of the error bound to a store path and cause.
func (e *StoreError) At(path string, cause error) *StoreError {
	return &StoreError{
		Code:    e.Code,
		Message: e.Message,
		Path:    path,
		Cause:   cause,
	}
}

func newStoreError(code, message string) *StoreError {
	return &StoreError{Code: code, Message: message}
}

var (
	// ErrDirectoryNotFound indicates the store path is missing or is not a
	// store directory of the configured engine.
	ErrDirectoryNotFound = newStoreError("RC-STOR-4040", "store directory not found")

	// ErrStoreOpen indicates the store could not be opened read-only:
	// corruption, incompatible format, a conflicting lock or an open timeout.
	ErrStoreOpen = newStoreError("RC-STOR-5001", "store open failure")

	// ErrIteration indicates the scan was interrupted.
	ErrIteration = newStoreError("RC-STOR-5002", "iteration failure")
)

// errConsumed is the cause reported when a snapshot is iterated twice.
var errConsumed = errors.New("records already consumed")

// Code extracts the error code from err, or "" if err is not a StoreError.
func Code(err error) string {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

package transcript

import "fmt"

// StoreError wraps a failed transcript write or read with the operation that
// produced it.
type StoreError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("transcript: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying storage error.
func (e *StoreError) Unwrap() error { return e.Err }

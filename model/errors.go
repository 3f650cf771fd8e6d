package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a provider failure for retry decisions.
type ErrorKind int

const (
	// KindFatal marks errors retrying cannot fix (auth failures, invalid
	// requests, anything unrecognized).
	KindFatal ErrorKind = iota
	// KindRateLimited marks provider rate-limit rejections.
	KindRateLimited
	// KindTransient marks temporary faults (timeouts, 5xx responses,
	// dropped connections).
	KindTransient
)

// String returns the snake_case kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps a provider failure with its retry classification.
type Error struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the classification is worth another attempt.
func (e *Error) Retryable() bool { return e.Kind == KindRateLimited || e.Kind == KindTransient }

// RateLimited wraps err as a rate-limit rejection.
func RateLimited(err error) *Error { return &Error{Kind: KindRateLimited, Err: err} }

// Transient wraps err as a temporary fault.
func Transient(err error) *Error { return &Error{Kind: KindTransient, Err: err} }

// Fatal wraps err as a permanent failure.
func Fatal(err error) *Error { return &Error{Kind: KindFatal, Err: err} }

// ClassifyStatus maps a provider HTTP status code onto an ErrorKind: 429 is
// rate limiting, 5xx is transient, everything else will not improve on retry.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindTransient
	default:
		return KindFatal
	}
}

// FromStatus wraps err with the classification implied by an HTTP status.
func FromStatus(status int, err error) *Error {
	return &Error{Kind: ClassifyStatus(status), Err: err}
}

// KindOf extracts the classification from err, defaulting to KindFatal for
// errors without one.
func KindOf(err error) ErrorKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindFatal
}

// IsRetryable reports whether err carries a retryable classification.
// Unclassified errors are treated as fatal.
func IsRetryable(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Retryable()
	}
	return false
}

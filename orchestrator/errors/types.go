package errors

import (
	"fmt"
)

// ErrorCode represents the closed set of key custody failures
type ErrorCode string

const (
	// ErrCodeNotFound indicates no key exists under the requested name
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeBackendUnavailable indicates the provider could not be reached or opened
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"

	// ErrCodeCorrupt indicates stored material does not decode to a key document
	ErrCodeCorrupt ErrorCode = "CORRUPT"

	// ErrCodeKeyFormat indicates a key document does not hold a usable secp256k1 scalar
	ErrCodeKeyFormat ErrorCode = "KEY_FORMAT"

	// ErrCodeInvalidName indicates a key name violates the naming constraints
	ErrCodeInvalidName ErrorCode = "INVALID_NAME"

	// ErrCodeWriteRejected indicates the provider refused a store operation
	ErrCodeWriteRejected ErrorCode = "WRITE_REJECTED"
)

// Sentinels for errors.Is matching. Any KeyError with the same code matches.
var (
	ErrNotFound           = &KeyError{Code: ErrCodeNotFound}
	ErrBackendUnavailable = &KeyError{Code: ErrCodeBackendUnavailable}
	ErrCorrupt            = &KeyError{Code: ErrCodeCorrupt}
	ErrKeyFormat          = &KeyError{Code: ErrCodeKeyFormat}
	ErrInvalidName        = &KeyError{Code: ErrCodeInvalidName}
	ErrWriteRejected      = &KeyError{Code: ErrCodeWriteRejected}
)

// KeyError is the only error type returned across the keystore boundary
type KeyError struct {
	Code    ErrorCode `json:"code"`
	Op      string    `json:"op,omitempty"`
	Key     string    `json:"key,omitempty"`
	Backend string    `json:"backend,omitempty"`
	Message string    `json:"message,omitempty"`
	Cause   error     `json:"-"`
}

// New creates a new KeyError
func New(code ErrorCode, op, key, message string, cause error) *KeyError {
	return &KeyError{
		Code:    code,
		Op:      op,
		Key:     key,
		Message: message,
		Cause:   cause,
	}
}

// Error implements the error interface
func (e *KeyError) Error() string {
	msg := fmt.Sprintf("[%s]", e.Code)
	if e.Backend != "" {
		msg = fmt.Sprintf("[%s:%s]", e.Backend, e.Code)
	}
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" %q", e.Key)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *KeyError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a KeyError carrying the same code
func (e *KeyError) Is(target error) bool {
	t, ok := target.(*KeyError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithBackend tags the error with the backend that produced it
func (e *KeyError) WithBackend(backend string) *KeyError {
	e.Backend = backend
	return e
}

// IsRetryable returns true if retrying the same call may succeed
func (e *KeyError) IsRetryable() bool {
	return e.Code == ErrCodeBackendUnavailable
}

// Common error constructors

// NewNotFoundError creates a not-found error
func NewNotFoundError(op, key string) *KeyError {
	return New(ErrCodeNotFound, op, key, "no key stored under this name", nil)
}

// NewBackendUnavailableError creates a backend-unavailable error
func NewBackendUnavailableError(op, key, message string, cause error) *KeyError {
	return New(ErrCodeBackendUnavailable, op, key, message, cause)
}

// NewCorruptError creates a corrupt-material error
func NewCorruptError(op, key, message string, cause error) *KeyError {
	return New(ErrCodeCorrupt, op, key, message, cause)
}

// NewKeyFormatError creates a key-format error
func NewKeyFormatError(message string, cause error) *KeyError {
	return New(ErrCodeKeyFormat, "derive", "", message, cause)
}

// NewInvalidNameError creates an invalid-name error
func NewInvalidNameError(key, message string) *KeyError {
	return New(ErrCodeInvalidName, "name", key, message, nil)
}

// NewWriteRejectedError creates a write-rejected error
func NewWriteRejectedError(op, key, message string, cause error) *KeyError {
	return New(ErrCodeWriteRejected, op, key, message, cause)
}

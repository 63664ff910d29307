package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is checks if an error is of a specific type
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As checks if an error can be assigned to a target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// CodeOf returns the code of the first KeyError in the chain, or "" if there is none
func CodeOf(err error) ErrorCode {
	var keyErr *KeyError
	if errors.As(err, &keyErr) {
		return keyErr.Code
	}
	return ""
}

// HasCode checks if an error is a KeyError with specific code
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var keyErr *KeyError
	if errors.As(err, &keyErr) {
		return keyErr.IsRetryable()
	}
	return false
}

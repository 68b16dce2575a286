// Package common provides shared utilities used across the application:
// logging setup, sentinel errors, and network retry behavior.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// LabCAS API errors.
	ErrUnauthorized = errors.New("labcas authentication rejected")
	ErrRateLimit    = errors.New("rate limit exceeded")
	ErrMaxRetries   = errors.New("max retries exceeded")

	// Harvest errors.
	ErrCollectionNotFound = errors.New("collection not found")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user with a
// friendly message in front of the underlying cause.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}

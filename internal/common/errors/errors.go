// Package errors provides the standardized error taxonomy for notification runs.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Rejected input
const (
	ErrCodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
)

// No-op
const (
	ErrCodeApplicationNotFound ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeRunInProgress       ErrorCode = "RUN_IN_PROGRESS"
)

// Permanent per-channel failures (marked sent-equivalent)
const (
	ErrCodeNoContact        ErrorCode = "NO_CONTACT"
	ErrCodeInvalidPhone     ErrorCode = "INVALID_PHONE"
	ErrCodeInvalidEmail     ErrorCode = "INVALID_EMAIL"
	ErrCodePayloadTooLarge  ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeProviderRejected ErrorCode = "PROVIDER_REJECTED"
)

// Transient per-channel failures (left unmarked)
const (
	ErrCodeProviderError   ErrorCode = "PROVIDER_ERROR"
	ErrCodeProviderTimeout ErrorCode = "PROVIDER_TIMEOUT"
)

// Store and internal failures
const (
	ErrCodeStoreQueryFailed  ErrorCode = "STORE_QUERY_FAILED"
	ErrCodeStoreUpdateFailed ErrorCode = "STORE_UPDATE_FAILED"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Permanent reports whether the failure should never be retried.
func (e *StandardError) Permanent() bool {
	return !e.Retryable
}

// ==========================
// 2. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewInvalidPayloadError creates a non-retryable input rejection.
func NewInvalidPayloadError(details string) *StandardError {
	return newError(ErrCodeInvalidPayload, "Invalid payload structure", details, false, nil)
}

// NewUnauthorizedError creates a non-retryable shared-secret rejection.
func NewUnauthorizedError() *StandardError {
	return newError(ErrCodeUnauthorized, "Invalid webhook secret", "", false, nil)
}

// NewApplicationNotFoundError reports an absent or fully notified application.
func NewApplicationNotFoundError(candidateID, requirementID string) *StandardError {
	return newError(ErrCodeApplicationNotFound, "Application not found or already fully notified",
		fmt.Sprintf("candidateId: %s, requirementId: %s", candidateID, requirementID), false, nil)
}

// NewNoContactError creates a permanent skip for a channel without a destination.
func NewNoContactError(channel string) *StandardError {
	return newError(ErrCodeNoContact, "No contact information available",
		fmt.Sprintf("channel: %s", channel), false, nil)
}

// NewInvalidPhoneError creates a permanent skip for an unusable phone number.
func NewInvalidPhoneError(raw string) *StandardError {
	return newError(ErrCodeInvalidPhone, "Invalid phone number format",
		fmt.Sprintf("phone: %s", raw), false, nil)
}

// NewInvalidEmailError creates a permanent skip for an unusable email address.
func NewInvalidEmailError(raw string) *StandardError {
	return newError(ErrCodeInvalidEmail, "Invalid email address",
		fmt.Sprintf("email: %s", raw), false, nil)
}

// NewPayloadTooLargeError creates a permanent failure for an oversized payload.
func NewPayloadTooLargeError(channel string, size, limit int) *StandardError {
	return newError(ErrCodePayloadTooLarge, "Payload exceeds channel limit",
		fmt.Sprintf("channel: %s, size: %d, limit: %d", channel, size, limit), false, nil)
}

// NewProviderRejectedError creates a permanent failure for a request the provider will never accept.
func NewProviderRejectedError(provider string, err error) *StandardError {
	return newError(ErrCodeProviderRejected, "Provider rejected the request",
		fmt.Sprintf("provider: %s, error: %v", provider, err), false, err)
}

// NewProviderError creates a retryable provider failure.
func NewProviderError(provider string, err error) *StandardError {
	return newError(ErrCodeProviderError, "Provider call failed",
		fmt.Sprintf("provider: %s, error: %v", provider, err), true, err)
}

// NewProviderTimeoutError creates a retryable provider timeout.
func NewProviderTimeoutError(provider string, err error) *StandardError {
	return newError(ErrCodeProviderTimeout, "Provider call timed out",
		fmt.Sprintf("provider: %s", provider), true, err)
}

// NewStoreQueryFailedError creates a retryable read failure.
func NewStoreQueryFailedError(err error) *StandardError {
	return newError(ErrCodeStoreQueryFailed, "Record store query failed", err.Error(), true, err)
}

// NewStoreUpdateFailedError creates a retryable mark failure.
func NewStoreUpdateFailedError(column string, err error) *StandardError {
	return newError(ErrCodeStoreUpdateFailed, "Record store update failed",
		fmt.Sprintf("column: %s, error: %v", column, err), true, err)
}

// NewInternalError wraps an unexpected failure. It is retryable: a bug on our
// side never marks a channel as handled.
func NewInternalError(details string) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", details, true, nil)
}

// ==========================
// 3. Classification
// ==========================

// AsStandardError extracts a *StandardError from err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsRetryable reports whether err is worth retrying on a later run. Only a
// StandardError explicitly flagged non-retryable is permanent; anything else
// (timeouts, network failures, unknown provider errors) stays retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Retryable
	}
	return true
}

// IsTimeout reports whether err stems from a deadline.
func IsTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

// CodeOf returns the error code for err, INTERNAL_ERROR when unknown.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

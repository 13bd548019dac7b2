// Package errors provides standardized error handling for the wifidog auth server.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Gateway protocol errors. None of these is ever surfaced to a gateway beyond "Auth: 0".
const (
	ErrCodeMissingToken             ErrorCode = "MISSING_TOKEN"
	ErrCodeInvalidOrInactiveSession ErrorCode = "INVALID_OR_INACTIVE_SESSION"
	ErrCodeStorageUnavailable       ErrorCode = "STORAGE_UNAVAILABLE"
	ErrCodeRateLimitExceeded        ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInvalidRequest           ErrorCode = "INVALID_REQUEST"
	ErrCodeInvalidBandwidthDelta    ErrorCode = "INVALID_BANDWIDTH_DELTA"
)

// Session lifecycle errors.
const (
	ErrCodeSessionAlreadyActive  ErrorCode = "SESSION_ALREADY_ACTIVE"
	ErrCodeDuplicateToken        ErrorCode = "DUPLICATE_TOKEN"
	ErrCodeTokenGenerationFailed ErrorCode = "TOKEN_GENERATION_FAILED"
)

// Portal login errors.
const (
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeUserInactive         ErrorCode = "USER_INACTIVE"
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
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches two StandardErrors by code so errors.Is works against the sentinels below.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrMissingToken             = &StandardError{Code: ErrCodeMissingToken}
	ErrInvalidOrInactiveSession = &StandardError{Code: ErrCodeInvalidOrInactiveSession}
	ErrStorageUnavailable       = &StandardError{Code: ErrCodeStorageUnavailable}
	ErrSessionAlreadyActive     = &StandardError{Code: ErrCodeSessionAlreadyActive}
	ErrAuthenticationFailed     = &StandardError{Code: ErrCodeAuthenticationFailed}
	ErrUserInactive             = &StandardError{Code: ErrCodeUserInactive}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewMissingTokenError is logged when an auth request arrives without a token.
func NewMissingTokenError() *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingToken,
		Message:   "Missing token",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidOrInactiveSessionError is logged when a token maps to no active session.
func NewInvalidOrInactiveSessionError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidOrInactiveSession,
		Message:   "Invalid or inactive session",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageUnavailableError wraps a failed or timed out storage operation.
func NewStorageUnavailableError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageUnavailable,
		Message:   "Storage unavailable",
		Details:   fmt.Sprintf("operation: %s, error: %v", operation, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewRateLimitExceededError is reserved for the rate limiter in front of the server.
func NewRateLimitExceededError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimitExceeded,
		Message:   "Rate limit exceeded",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError reports a malformed gateway or portal request.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidBandwidthDeltaError rejects negative byte counts.
func NewInvalidBandwidthDeltaError(incoming, outgoing int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidBandwidthDelta,
		Message:   "Bandwidth counters must be non-negative",
		Details:   fmt.Sprintf("incoming: %d, outgoing: %d", incoming, outgoing),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionAlreadyActiveError enforces the single-session-per-device policy.
func NewSessionAlreadyActiveError(mac string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionAlreadyActive,
		Message:   "Device already has an active session",
		Details:   fmt.Sprintf("mac: %s", mac),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateTokenError is returned when every token attempt hit the uniqueness constraint.
func NewDuplicateTokenError(attempts int) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateToken,
		Message:   "Could not allocate a unique session token",
		Details:   fmt.Sprintf("attempts: %d", attempts),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTokenGenerationFailedError wraps entropy source failures.
func NewTokenGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenGenerationFailed,
		Message:   "Token generation failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewAuthenticationError reports bad portal credentials.
func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthenticationFailed,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserInactiveError reports a disabled portal account.
func NewUserInactiveError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUserInactive,
		Message:   "User account is inactive",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// CodeOf extracts the ErrorCode of err, or "INTERNAL_ERROR" if err is not a StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return "INTERNAL_ERROR"
}

// IsStorageError reports whether err stems from an unavailable store.
func IsStorageError(err error) bool {
	return CodeOf(err) == ErrCodeStorageUnavailable
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "STORAGE"):
		return "STORAGE"
	case strings.Contains(codeStr, "TOKEN") || strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "AUTHENTICATION") || strings.Contains(codeStr, "USER"):
		return "PORTAL"
	case strings.Contains(codeStr, "RATE_LIMIT"):
		return "RATE_LIMIT"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

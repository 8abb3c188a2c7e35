// Package errors provides standardized error handling for the notification engine.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Configuration errors abort a dispatch before any delivery is attempted.
	ErrCodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"
	ErrCodeCadenceInvalid       ErrorCode = "CADENCE_INVALID"
	ErrCodeTriggerMismatch      ErrorCode = "TRIGGER_MISMATCH"
	ErrCodeContextKindUnknown   ErrorCode = "CONTEXT_KIND_UNKNOWN"

	// Per-recipient errors are collected, never aborting the batch.
	ErrCodeTemplateRenderFailed  ErrorCode = "TEMPLATE_RENDER_FAILED"
	ErrCodeChannelSendFailed     ErrorCode = "CHANNEL_SEND_FAILED"
	ErrCodeChannelAddressMissing ErrorCode = "CHANNEL_ADDRESS_MISSING"

	// Infrastructure errors.
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeScheduleLockHeld         ErrorCode = "SCHEDULE_LOCK_HELD"
	ErrCodeAuditIndexFailed         ErrorCode = "AUDIT_INDEX_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewConfigurationInvalidError creates a non-retryable schedule configuration error.
func NewConfigurationInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationInvalid,
		Message:   "Schedule configuration is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCadenceInvalidError creates a non-retryable cadence configuration error.
func NewCadenceInvalidError(unit string, count int) *StandardError {
	return &StandardError{
		Code:      ErrCodeCadenceInvalid,
		Message:   "Recurrence cadence is invalid",
		Details:   fmt.Sprintf("unit: %s, count: %d", unit, count),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTriggerMismatchError creates a non-retryable trigger/root mismatch error.
func NewTriggerMismatchError(triggerType, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTriggerMismatch,
		Message:   "Trigger does not match the schedule's root entity kind",
		Details:   fmt.Sprintf("triggerType: %s, %s", triggerType, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewContextKindUnknownError creates a non-retryable context-spec validation error.
func NewContextKindUnknownError(reference string) *StandardError {
	return &StandardError{
		Code:      ErrCodeContextKindUnknown,
		Message:   "Context reference names an unknown entity kind",
		Details:   fmt.Sprintf("reference: %s", reference),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateRenderFailedError creates a non-retryable render error.
func NewTemplateRenderFailedError(ref string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateRenderFailed,
		Message:   "Template rendering failed",
		Details:   fmt.Sprintf("ref: %s, error: %s", ref, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelSendFailedError creates a retryable delivery error.
func NewChannelSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelSendFailed,
		Message:   "Channel delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelAddressMissingError creates a non-retryable missing-address error.
func NewChannelAddressMissingError(channel, recipientID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelAddressMissing,
		Message:   "Recipient has no address for channel",
		Details:   fmt.Sprintf("channel: %s, recipientId: %s", channel, recipientID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryName string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("query: %s, error: %s", queryName, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewScheduleLockHeldError creates a non-retryable lock contention signal.
// The cron sweep picks the schedule up again, so the caller skips rather than retries.
func NewScheduleLockHeldError(scheduleID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeScheduleLockHeld,
		Message:   "Schedule dispatch lock is held by another run",
		Details:   fmt.Sprintf("scheduleId: %s", scheduleID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuditIndexFailedError creates a retryable audit indexing error.
func NewAuditIndexFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuditIndexFailed,
		Message:   "Audit index write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification
// ==========================

// GetRetryCount returns the recommended retry budget for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeChannelSendFailed,
		ErrCodeAuditIndexFailed:
		return 3 // Retryable technical errors

	default:
		return 0 // Configuration and business errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// IsCode reports whether err is a StandardError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// Normalize wraps an arbitrary error into a StandardError so callers always
// see a coded error at the dispatch boundary.
func Normalize(err error, fallback ErrorCode) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      fallback,
		Message:   err.Error(),
		Retryable: IsRetryableErrorCode(fallback),
		Timestamp: time.Now().UTC(),
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CADENCE") || strings.Contains(codeStr, "TRIGGER") || strings.Contains(codeStr, "CONFIGURATION") || strings.Contains(codeStr, "CONTEXT"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "TEMPLATE"):
		return "RENDER"
	case strings.Contains(codeStr, "CHANNEL"):
		return "CHANNEL"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "LOCK"):
		return "LOCK"
	case strings.Contains(codeStr, "AUDIT"):
		return "AUDIT"
	default:
		return "OTHER"
	}
}

// Package errors provides standardized error handling for the import and
// outreach pipeline.
package errors

import (
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
	// File format errors. The three failure modes of an upload carry
	// distinct codes so each surfaces its own user-facing message.
	ErrCodeFileMissingSheet   ErrorCode = "FILE_MISSING_SHEET"
	ErrCodeFileInsufficient   ErrorCode = "FILE_INSUFFICIENT_ROWS"
	ErrCodeFileMissingColumns ErrorCode = "FILE_MISSING_COLUMNS"
	ErrCodeFileUnreadable     ErrorCode = "FILE_UNREADABLE"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeContactCreateFailed     ErrorCode = "CONTACT_CREATE_FAILED"
	ErrCodeOpportunityCreateFailed ErrorCode = "OPPORTUNITY_CREATE_FAILED"
	ErrCodeStoreTimeout            ErrorCode = "STORE_TIMEOUT"

	ErrCodeOutreachDispatchFailed ErrorCode = "OUTREACH_DISPATCH_FAILED"
	ErrCodeOutreachTimeout        ErrorCode = "OUTREACH_TIMEOUT"
	ErrCodeResultFetchFailed      ErrorCode = "RESULT_FETCH_FAILED"
	ErrCodeBatchCleanupFailed     ErrorCode = "BATCH_CLEANUP_FAILED"

	ErrCodeSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
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

// UserMessage returns the text safe to surface to a user. Raw error details
// never cross the API boundary when a better message exists.
func (e *StandardError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Details
}

// ==========================
// 2. Error Constructors
// ==========================

// NewFileMissingSheetError reports an upload without the required sheet.
func NewFileMissingSheetError(sheetName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFileMissingSheet,
		Message:   fmt.Sprintf("The uploaded file has no %q sheet. Please use the provided template.", sheetName),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFileInsufficientRowsError reports an upload without any data rows.
func NewFileInsufficientRowsError(rows int) *StandardError {
	return &StandardError{
		Code:      ErrCodeFileInsufficient,
		Message:   "The uploaded file must contain a header row and at least one data row.",
		Details:   fmt.Sprintf("rows found: %d", rows),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFileMissingColumnsError reports an upload missing required header columns.
func NewFileMissingColumnsError(columns []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFileMissingColumns,
		Message:   fmt.Sprintf("The uploaded file is missing required columns: %s", strings.Join(columns, ", ")),
		Details:   fmt.Sprintf("missing: %v", columns),
		Retryable: false,
		Metadata:  map[string]interface{}{"missingColumns": columns},
		Timestamp: time.Now().UTC(),
	}
}

// NewFileUnreadableError reports a file that could not be parsed at all.
func NewFileUnreadableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFileUnreadable,
		Message:   "The uploaded file could not be read. Please upload a valid spreadsheet.",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewContactCreateFailedError creates a retryable record-store error.
func NewContactCreateFailedError(clientName string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeContactCreateFailed,
		Message:   "Failed to create contact record",
		Details:   fmt.Sprintf("client: %s, error: %s", clientName, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOpportunityCreateFailedError creates a retryable record-store error.
func NewOpportunityCreateFailedError(clientName string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOpportunityCreateFailed,
		Message:   "Failed to create opportunity record",
		Details:   fmt.Sprintf("client: %s, error: %s", clientName, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreTimeoutError creates a retryable store timeout error.
func NewStoreTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreTimeout,
		Message:   "Record store call timed out",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOutreachDispatchFailedError creates a non-retryable dispatch error.
// A failed batch submission is fatal to outreach; the import results stand.
func NewOutreachDispatchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOutreachDispatchFailed,
		Message:   "Outreach Failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOutreachTimeoutError creates a retryable provider timeout error.
func NewOutreachTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOutreachTimeout,
		Message:   "Outreach provider call timed out",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewResultFetchFailedError creates a retryable result fetch error. Surfaced
// as a dismissible banner with a manual retry, never fatal to the session.
func NewResultFetchFailedError(batchID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeResultFetchFailed,
		Message:   "Failed to load outreach results. Please retry.",
		Details:   fmt.Sprintf("batchId: %s, error: %s", batchID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBatchCleanupFailedError creates a retryable cleanup error.
func NewBatchCleanupFailedError(batchID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBatchCleanupFailed,
		Message:   "Failed to clean up outreach batch",
		Details:   fmt.Sprintf("batchId: %s, error: %s", batchID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError creates a non-retryable session lookup error.
func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Import session not found",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError creates a non-retryable state machine error.
func NewInvalidTransitionError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "That action is not available at this step",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandardError converts any error to a StandardError, wrapping unknown
// errors under a generic code.
func AsStandardError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "An unexpected error occurred",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsFileFormatError reports whether the error is one of the three upload
// failure modes.
func IsFileFormatError(err error) bool {
	stdErr, ok := err.(*StandardError)
	if !ok {
		return false
	}
	switch stdErr.Code {
	case ErrCodeFileMissingSheet, ErrCodeFileInsufficient, ErrCodeFileMissingColumns, ErrCodeFileUnreadable:
		return true
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "FILE"):
		return "FILE"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "CONTACT") || strings.Contains(codeStr, "OPPORTUNITY") || strings.Contains(codeStr, "STORE"):
		return "STORE"
	case strings.Contains(codeStr, "OUTREACH") || strings.Contains(codeStr, "BATCH") || strings.Contains(codeStr, "RESULT"):
		return "OUTREACH"
	case strings.Contains(codeStr, "SESSION") || strings.Contains(codeStr, "TRANSITION"):
		return "WIZARD"
	default:
		return "OTHER"
	}
}

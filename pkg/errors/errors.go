package errors

import (
	"fmt"
	"net/http"

	"pollengine/internal/domain"
)

// ErrorType classifies application errors. Rejections are expected,
// user-facing outcomes; conflicts are retriable by the caller after a
// re-read; faults are infrastructure failures propagated unmodified.
type ErrorType string

const (
	ErrorTypeRejection      ErrorType = "rejection"
	ErrorTypeConflict       ErrorType = "conflict"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeAuthorization  ErrorType = "authorization"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeFault          ErrorType = "fault"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Reason     string                 `json:"reason,omitempty"`
	StatusCode int                    `json:"status_code"`
	Internal   error                  `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Internal.Error())
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// rejectionStatus maps each rejection reason onto an HTTP status.
var rejectionStatus = map[domain.RejectReason]int{
	domain.ReasonPollNotActive:            http.StatusConflict,
	domain.ReasonAuthenticationRequired:   http.StatusUnauthorized,
	domain.ReasonAlreadyVoted:             http.StatusConflict,
	domain.ReasonVoteLimitReached:         http.StatusConflict,
	domain.ReasonUnknownOption:            http.StatusBadRequest,
	domain.ReasonDuplicateSelection:       http.StatusBadRequest,
	domain.ReasonSelectionCountOutOfRange: http.StatusBadRequest,
	domain.ReasonResultsEmbargoed:         http.StatusForbidden,
	domain.ReasonPollStillActive:          http.StatusForbidden,
	domain.ReasonPollNotStarted:           http.StatusForbidden,
}

// NewRejectionError wraps a domain rejection for the HTTP boundary. The
// reason travels verbatim; only the status code is added.
func NewRejectionError(rej *domain.RejectionError) *AppError {
	status, ok := rejectionStatus[rej.Reason]
	if !ok {
		status = http.StatusBadRequest
	}
	return &AppError{
		Type:       ErrorTypeRejection,
		Message:    rej.Error(),
		Reason:     string(rej.Reason),
		StatusCode: status,
		Internal:   rej,
	}
}

// NewConflictError creates an optimistic-concurrency conflict error. The
// caller is expected to re-read current state and retry.
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details map[string]interface{}) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeAuthorization,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewFaultError wraps an infrastructure failure. Faults are never
// converted into rejections: the operation is not-yet-completed, not
// denied.
func NewFaultError(message string, internal error) *AppError {
	return &AppError{
		Type:       ErrorTypeFault,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   internal,
	}
}

// ErrorResponse represents the JSON error response
type ErrorResponse struct {
	Error struct {
		Type      ErrorType              `json:"type"`
		Message   string                 `json:"message"`
		Reason    string                 `json:"reason,omitempty"`
		Details   map[string]interface{} `json:"details,omitempty"`
		RequestID string                 `json:"request_id,omitempty"`
		Timestamp string                 `json:"timestamp"`
	} `json:"error"`
}

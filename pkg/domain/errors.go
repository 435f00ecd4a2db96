package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionNotFound is returned when a session key cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrLockTimeout is returned when a session lock could not be acquired within the configured bound.
// It is retryable: platforms redeliver failed webhooks.
var ErrLockTimeout = errors.New("session lock timeout")

// ErrHandoffLimit is returned when an action chain exceeds the maximum number of handoffs.
// It indicates a cycle in the handler configuration and is never retryable.
var ErrHandoffLimit = errors.New("action handoff limit exceeded")

// ValidationError rejects a delivery during preprocessing (bad signature, wrong verify token, ...).
// Status and Body are returned to the platform verbatim.
type ValidationError struct {
	Status int
	Body   any
	Reason string
}

// NewValidationError creates a ValidationError.
func NewValidationError(status int, body any, reason string) *ValidationError {
	return &ValidationError{Status: status, Body: body, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%d): %s", e.Status, e.Reason)
}

// Response converts the error into the response sent back to the platform.
func (e *ValidationError) Response() *Response {
	status := e.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	return NewResponse(status, e.Body)
}

// MappingError reports a delivery body that violates the platform's schema.
type MappingError struct {
	Platform Platform
	Err      error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s: failed to map request to events: %v", e.Platform, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// HandlerError reports a failure raised while handling one event.
type HandlerError struct {
	SessionKey string
	EventKind  EventKind
	Err        error
}

func (e *HandlerError) Error() string {
	if e.SessionKey == "" {
		return fmt.Sprintf("handler failed for %s event: %v", e.EventKind, e.Err)
	}
	return fmt.Sprintf("handler failed for %s event (session %s): %v", e.EventKind, e.SessionKey, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a condition the platform should redeliver on.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

// StatusFor maps an error from the dispatch pipeline to an HTTP status.
func StatusFor(err error) int {
	var verr *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return verr.Response().Status
	case IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ResponseFor converts a pipeline error into the response sent to the platform.
// Validation errors keep their own status and body.
func ResponseFor(err error) *Response {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Response()
	}
	status := StatusFor(err)
	return NewResponse(status, http.StatusText(status))
}

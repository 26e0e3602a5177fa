// Package httpx provides HTTP response utilities and the API error taxonomy.
package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Stable machine-readable error codes returned in the response envelope.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
)

// Error is a domain error carrying its HTTP status, a stable code and a
// client-safe message. Anything not wrapped in an Error surfaces as a
// generic 500.
type Error struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Unauthorized builds a 401 authentication error.
func Unauthorized(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

// Forbidden builds a 403 authorization error.
func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: message}
}

// ForbiddenWithDetails builds a 403 carrying structured detail, such as the
// permissions that would have satisfied the check.
func ForbiddenWithDetails(message string, details any) *Error {
	return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: message, Details: details}
}

// NotFound builds a 404. Tenant-scoped misses use this instead of 403 so a
// resource's existence is never confirmed to another tenant.
func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: message}
}

// Validation builds a 400 with optional field-level detail.
func Validation(message string, details any) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: message, Details: details}
}

// Internal builds a generic 500 with a non-leaking message.
func Internal() *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "Internal server error"}
}

// RespondError maps any error to the envelope. Domain errors keep their
// declared status and message; everything else is logged in full and
// surfaced as a generic 500.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Status >= http.StatusInternalServerError && logger != nil {
			logger.Error("internal error", slog.Any("error", err))
		}
		writeEnvelope(w, apiErr)
		return
	}
	if logger != nil {
		logger.Error("unhandled error", slog.Any("error", err))
	}
	writeEnvelope(w, Internal())
}

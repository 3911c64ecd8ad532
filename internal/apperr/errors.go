// Package apperr defines the error taxonomy surfaced to API callers. Every
// error that reaches the HTTP boundary is converted to an *Error exactly once
// and serialized into the response envelope.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind names the failure class. It is sent to clients so the UI can pick the
// right remediation (contact admin, connect drive, reconnect drive).
type Kind string

const (
	KindUnauthenticated    Kind = "unauthenticated"
	KindForbidden          Kind = "forbidden"
	KindBadRequest         Kind = "bad_request"
	KindNotConfigured      Kind = "not_configured"
	KindNotConnected       Kind = "not_connected"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindTokenRefreshFailed Kind = "token_refresh_failed"
	KindRemote             Kind = "remote_failure"
	KindInternal           Kind = "internal"
)

// Error is a structured API error carrying an HTTP status and a client-safe message.
type Error struct {
	Status  int
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so wrapped instances compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks. Never return these directly when context is
// available; use the constructors so the message carries it.
var (
	ErrUnauthenticated    = &Error{Status: http.StatusUnauthorized, Kind: KindUnauthenticated, Message: "Please login."}
	ErrForbidden          = &Error{Status: http.StatusForbidden, Kind: KindForbidden, Message: "You don't have permission to access this resource."}
	ErrBadRequest         = &Error{Status: http.StatusBadRequest, Kind: KindBadRequest, Message: "Bad request"}
	ErrNotConfigured      = &Error{Status: http.StatusBadRequest, Kind: KindNotConfigured, Message: "OAuth client not configured. Please contact your administrator."}
	ErrNotConnected       = &Error{Status: http.StatusBadRequest, Kind: KindNotConnected, Message: "Google Drive not connected"}
	ErrNotFound           = &Error{Status: http.StatusNotFound, Kind: KindNotFound, Message: "Not found"}
	ErrConflict           = &Error{Status: http.StatusConflict, Kind: KindConflict, Message: "Conflict"}
	ErrTokenRefreshFailed = &Error{Status: http.StatusUnauthorized, Kind: KindTokenRefreshFailed, Message: "Google Drive access expired. Please reconnect the drive."}
	ErrRemote             = &Error{Status: http.StatusBadGateway, Kind: KindRemote, Message: "Google Drive request failed"}
	ErrInternal           = &Error{Status: http.StatusInternalServerError, Kind: KindInternal, Message: "Internal Server Error"}
)

func derive(base *Error, message string, cause error) *Error {
	if message == "" {
		message = base.Message
	}
	return &Error{Status: base.Status, Kind: base.Kind, Message: message, Err: cause}
}

// Unauthenticated reports a missing session or failed login.
func Unauthenticated(message string) *Error { return derive(ErrUnauthenticated, message, nil) }

// BadRequest reports invalid caller input.
func BadRequest(message string) *Error { return derive(ErrBadRequest, message, nil) }

// Forbidden reports an authenticated caller lacking the required role.
func Forbidden(message string) *Error { return derive(ErrForbidden, message, nil) }

// NotFound reports a missing or foreign resource.
func NotFound(message string) *Error { return derive(ErrNotFound, message, nil) }

// Conflict reports a uniqueness violation.
func Conflict(message string) *Error { return derive(ErrConflict, message, nil) }

// NotConfigured reports missing system-level setup (OAuth client, root folder).
func NotConfigured(message string) *Error { return derive(ErrNotConfigured, message, nil) }

// NotConnected reports a user with zero credentials.
func NotConnected() *Error { return derive(ErrNotConnected, "", nil) }

// TokenRefreshFailed wraps a failed refresh exchange or its persistence.
func TokenRefreshFailed(cause error) *Error { return derive(ErrTokenRefreshFailed, "", cause) }

// Remote wraps a failed Google API call with the operation that issued it.
func Remote(operation string, cause error) *Error {
	return derive(ErrRemote, fmt.Sprintf("Failed to %s", operation), cause)
}

// Internal wraps an unexpected failure; the cause is logged, never sent.
func Internal(cause error) *Error { return derive(ErrInternal, "", cause) }

// From converts any error into an *Error. Unknown errors become Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

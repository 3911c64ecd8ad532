// Package envelope writes every JSON API response in the shape the browser
// client expects: {data, code, message, pagination?}. code mirrors the HTTP
// status.
package envelope

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/db"
	"github.com/pysugar/unified-drive/internal/logging"
)

// Pagination accompanies list responses that are paged.
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

// Response is the wire envelope.
type Response struct {
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Code       int         `json:"code"`
	Message    string      `json:"message"`
}

// Write sends an envelope with an explicit status and message.
func Write(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Data: data, Code: status, Message: message})
}

// OK sends a 200 envelope. A "message" key in a map payload is hoisted into
// the envelope message and removed from data.
func OK(w http.ResponseWriter, data any) {
	message := "OK"
	if m, ok := data.(map[string]any); ok {
		if msg, ok := m["message"].(string); ok {
			message = msg
			rest := make(map[string]any, len(m))
			for k, v := range m {
				if k != "message" {
					rest[k] = v
				}
			}
			data = rest
		}
	}
	Write(w, http.StatusOK, data, message)
}

// Page sends a 200 envelope carrying pagination.
func Page(w http.ResponseWriter, data any, p Pagination) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Response{Data: data, Pagination: &p, Code: http.StatusOK, Message: "OK"})
}

// Error converts err to an *apperr.Error and sends it. data carries the error
// kind so the UI can pick a remediation. Server-side failures are logged with
// the request id; their causes are never sent.
func Error(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	appErr := Translate(err)

	if appErr.Status >= http.StatusInternalServerError {
		l := logging.FromContext(r.Context(), log)
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			l = l.With(slog.String("chi_request_id", reqID))
		}
		l.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int(logging.KeyStatus, appErr.Status),
			logging.Err(err),
		)
	}

	Write(w, appErr.Status, map[string]string{"reason": string(appErr.Kind)}, appErr.Message)
}

// Translate maps store sentinels onto the API taxonomy; anything else goes
// through apperr.From.
func Translate(err error) *apperr.Error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, db.ErrNotFound):
		return apperr.NotFound("Not found")
	case errors.Is(err, db.ErrConflict):
		return apperr.Conflict("Resource already exists")
	case errors.Is(err, db.ErrInvalidConnectionName):
		return apperr.BadRequest("Connection name must be between 1 and 50 characters")
	case errors.Is(err, db.ErrAlreadySetUp):
		return apperr.BadRequest("System is already set up")
	case errors.Is(err, db.ErrNotSetUp):
		return apperr.BadRequest("System is not set up yet")
	}
	return apperr.From(err)
}

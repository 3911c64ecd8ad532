package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/auth/google"
	"github.com/pysugar/unified-drive/internal/db"
	"github.com/pysugar/unified-drive/internal/db/models"
	"github.com/pysugar/unified-drive/internal/logging"
	"github.com/pysugar/unified-drive/internal/proxy/envelope"
)

var errConnectionNotFound = apperr.NotFound("Connection not found")

// AuthorizeHandler redirects the browser to Google's consent screen.
func AuthorizeHandler(handshake *google.Handshake, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		url, err := handshake.AuthorizeURL(r.Context(), user.ID, r.URL.Query().Get("connectionName"))
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
	}
}

// CallbackHandler completes the handshake Google redirects back to. Outcomes
// the user can act on become redirects to the app; malformed callbacks get
// an error envelope.
func CallbackHandler(handshake *google.Handshake, baseURL string, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		target, err := handshake.Complete(r.Context(), google.CallbackParams{
			Code:  q.Get("code"),
			State: q.Get("state"),
			Error: q.Get("error"),
		})
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		http.Redirect(w, r, strings.TrimRight(baseURL, "/")+target, http.StatusFound)
	}
}

type connectionView struct {
	ID                string `json:"id"`
	ConnectionName    string `json:"connectionName"`
	IsActive          bool   `json:"isActive"`
	DriveRootFolderID string `json:"driveRootFolderId,omitempty"`
}

// ConnectionStatusHandler lists the user's connections and which one is in
// effect when a request names none.
func ConnectionStatusHandler(creds *db.CredentialStore, prefs *db.PreferenceStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		list, err := creds.FindByUser(r.Context(), user.ID)
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}

		configured := false
		pref, err := prefs.Get(r.Context())
		switch {
		case err == nil:
			configured = pref.IsOAuthConfigured()
		case !errors.Is(err, db.ErrNotSetUp):
			envelope.Error(w, r, log, err)
			return
		}

		var effective *models.Credential
		views := make([]connectionView, 0, len(list))
		for i := range list {
			c := &list[i]
			if effective == nil && c.IsActive {
				effective = c
			}
			views = append(views, connectionView{
				ID:                c.ID,
				ConnectionName:    c.ConnectionName,
				IsActive:          c.IsActive,
				DriveRootFolderID: c.DriveRootFolderID,
			})
		}
		if effective == nil && len(list) > 0 {
			effective = &list[0]
		}

		var rootFolderID any
		connectionName := models.DefaultConnectionName
		if effective != nil {
			if effective.DriveRootFolderID != "" {
				rootFolderID = effective.DriveRootFolderID
			}
			connectionName = effective.ConnectionName
		}

		envelope.OK(w, map[string]any{
			"isConnected":       len(list) > 0,
			"isOAuthConfigured": configured,
			"driveRootFolderId": rootFolderID,
			"connectionName":    connectionName,
			"connections":       views,
		})
	}
}

// DisconnectHandler deletes one connection (connectionId query) or all of
// them. Deleting the active connection promotes the oldest remaining one.
func DisconnectHandler(creds *db.CredentialStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		l := logging.FromContext(r.Context(), log).With(logging.UserID(user.ID))

		connectionID := strings.TrimSpace(r.URL.Query().Get("connectionId"))
		if connectionID == "" {
			n, err := creds.DeleteAllForUser(r.Context(), user.ID)
			if err != nil {
				envelope.Error(w, r, log, err)
				return
			}
			l.Info("all connections deleted", slog.Int64("count", n))
			envelope.OK(w, map[string]any{"message": "All connections deleted successfully"})
			return
		}

		promoted, err := creds.Delete(r.Context(), user.ID, connectionID)
		if errors.Is(err, db.ErrNotFound) {
			envelope.Error(w, r, log, errConnectionNotFound)
			return
		}
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}

		attrs := []any{logging.Connection(connectionID)}
		if promoted != nil {
			attrs = append(attrs, slog.String("promoted", promoted.ID))
		}
		l.Info("connection deleted", attrs...)
		envelope.OK(w, map[string]any{"message": "Connection deleted successfully"})
	}
}

type switchConnectionRequest struct {
	ConnectionID string `json:"connectionId"`
}

// SwitchConnectionHandler makes a connection the user's active one.
func SwitchConnectionHandler(creds *db.CredentialStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req switchConnectionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		req.ConnectionID = strings.TrimSpace(req.ConnectionID)
		if req.ConnectionID == "" {
			envelope.Error(w, r, log, apperr.BadRequest("Connection ID is required"))
			return
		}

		user := currentUser(r)
		err := creds.SetActive(r.Context(), user.ID, req.ConnectionID)
		if errors.Is(err, db.ErrNotFound) {
			envelope.Error(w, r, log, errConnectionNotFound)
			return
		}
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}

		envelope.OK(w, map[string]any{
			"message":      "Active connection switched successfully",
			"connectionId": req.ConnectionID,
		})
	}
}

type renameConnectionRequest struct {
	ConnectionID   string `json:"connectionId"`
	ConnectionName string `json:"connectionName"`
}

// RenameConnectionHandler changes a connection's label.
func RenameConnectionHandler(creds *db.CredentialStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req renameConnectionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		if req.ConnectionName == "" {
			envelope.Error(w, r, log, apperr.BadRequest("Connection name is required"))
			return
		}
		if _, err := db.NormalizeConnectionName(req.ConnectionName); err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		if strings.TrimSpace(req.ConnectionID) == "" {
			envelope.Error(w, r, log, apperr.BadRequest("Connection ID is required"))
			return
		}

		cred, err := creds.Rename(r.Context(), currentUser(r).ID, strings.TrimSpace(req.ConnectionID), req.ConnectionName)
		switch {
		case errors.Is(err, db.ErrNotFound):
			envelope.Error(w, r, log, errConnectionNotFound)
			return
		case errors.Is(err, db.ErrConflict):
			envelope.Error(w, r, log, apperr.Conflict("A connection with this name already exists"))
			return
		case err != nil:
			envelope.Error(w, r, log, err)
			return
		}

		envelope.OK(w, map[string]any{
			"message":        "Connection name updated successfully",
			"connectionName": cred.ConnectionName,
		})
	}
}

package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/db"
	"github.com/pysugar/unified-drive/internal/logging"
	"github.com/pysugar/unified-drive/internal/proxy/envelope"
)

// GetOAuthClientHandler shows the configured Google OAuth client ID. The
// secret is never returned.
func GetOAuthClientHandler(prefs *db.PreferenceStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pref, err := prefs.Get(r.Context())
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}

		var clientID any
		if pref.GoogleOAuthClientID != "" {
			clientID = pref.GoogleOAuthClientID
		}
		envelope.OK(w, map[string]any{
			"clientId":     clientID,
			"isConfigured": pref.IsOAuthConfigured(),
		})
	}
}

type oauthClientRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// SetOAuthClientHandler stores the system-wide Google OAuth client.
func SetOAuthClientHandler(prefs *db.PreferenceStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauthClientRequest
		if err := decodeJSON(w, r, &req); err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		req.ClientID = strings.TrimSpace(req.ClientID)
		req.ClientSecret = strings.TrimSpace(req.ClientSecret)
		if req.ClientID == "" || req.ClientSecret == "" {
			envelope.Error(w, r, log, apperr.BadRequest("Client ID and Client Secret are required"))
			return
		}

		if _, err := prefs.SetOAuthClient(r.Context(), req.ClientID, req.ClientSecret); err != nil {
			envelope.Error(w, r, log, err)
			return
		}

		logging.FromContext(r.Context(), log).Info("oauth client configured",
			logging.UserID(currentUser(r).ID),
			slog.String("client_id", req.ClientID),
		)
		envelope.OK(w, map[string]any{
			"message":  "OAuth client configured successfully",
			"clientId": req.ClientID,
		})
	}
}

// DeleteOAuthClientHandler removes the Google OAuth client. Connected drives
// stop working until a client is configured again.
func DeleteOAuthClientHandler(prefs *db.PreferenceStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := prefs.ClearOAuthClient(r.Context()); err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		logging.FromContext(r.Context(), log).Warn("oauth client removed", logging.UserID(currentUser(r).ID))
		envelope.OK(w, map[string]any{"message": "OAuth client configuration removed successfully"})
	}
}

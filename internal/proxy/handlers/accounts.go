package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/auth/session"
	"github.com/pysugar/unified-drive/internal/db"
	"github.com/pysugar/unified-drive/internal/db/models"
	"github.com/pysugar/unified-drive/internal/logging"
	"github.com/pysugar/unified-drive/internal/proxy/envelope"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// RegisterHandler creates a reader account when self-registration is enabled.
func RegisterHandler(prefs *db.PreferenceStore, users *db.UserStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pref, err := prefs.Get(r.Context())
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		if !pref.AllowRegistration {
			envelope.Error(w, r, log, apperr.Forbidden("Registration is not allowed"))
			return
		}

		var req registerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		switch {
		case strings.TrimSpace(req.Username) == "":
			envelope.Error(w, r, log, apperr.BadRequest("Username is required"))
			return
		case req.Password == "":
			envelope.Error(w, r, log, apperr.BadRequest("Password is required"))
			return
		case strings.TrimSpace(req.FullName) == "":
			envelope.Error(w, r, log, apperr.BadRequest("Full name is required"))
			return
		}

		hash, err := session.HashPassword(req.Password)
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		user := &models.User{
			Username:     req.Username,
			PasswordHash: hash,
			FullName:     strings.TrimSpace(req.FullName),
			Role:         models.RoleReader,
		}
		if err := users.Create(r.Context(), user); err != nil {
			if errors.Is(err, db.ErrConflict) {
				err = apperr.BadRequest("Username already exists")
			}
			envelope.Error(w, r, log, err)
			return
		}

		logging.FromContext(r.Context(), log).Info("user registered", logging.UserID(user.ID))
		envelope.OK(w, map[string]any{
			"message": "Registration successful",
			"user":    viewUser(user),
		})
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginHandler verifies a password and issues a session, both as a cookie and
// in the body for API clients that send it back as a Bearer token.
func LoginHandler(users *db.UserStore, sessions *session.Manager, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		if strings.TrimSpace(req.Username) == "" || req.Password == "" {
			envelope.Error(w, r, log, apperr.BadRequest("Invalid data"))
			return
		}

		user, err := users.FindByUsername(r.Context(), req.Username)
		if errors.Is(err, db.ErrNotFound) {
			envelope.Error(w, r, log, apperr.Unauthenticated(session.ErrInvalidPassword.Error()))
			return
		}
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		if err := session.CheckPassword(user.PasswordHash, req.Password); err != nil {
			logging.FromContext(r.Context(), log).Info("login rejected", logging.UserID(user.ID))
			envelope.Error(w, r, log, apperr.Unauthenticated(err.Error()))
			return
		}

		token, expiresAt, err := sessions.Issue(user)
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		sessions.SetCookie(w, token, expiresAt)

		envelope.OK(w, map[string]any{
			"message":   "Login success",
			"user":      viewUser(user),
			"token":     token,
			"expiresAt": expiresAt.UTC().Format(time.RFC3339),
		})
	}
}

// LogoutHandler clears the session cookie. Bearer tokens simply expire.
func LogoutHandler(sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions.ClearCookie(w)
		envelope.OK(w, map[string]any{"message": "Logout success"})
	}
}

// MeHandler returns the current user.
func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		envelope.OK(w, map[string]any{"user": viewUser(currentUser(r))})
	}
}

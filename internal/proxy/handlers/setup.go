package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/auth/session"
	"github.com/pysugar/unified-drive/internal/db"
	"github.com/pysugar/unified-drive/internal/db/models"
	"github.com/pysugar/unified-drive/internal/logging"
	"github.com/pysugar/unified-drive/internal/proxy/envelope"
)

type preferenceView struct {
	SystemName        string `json:"systemName"`
	AllowRegistration bool   `json:"allowRegistration"`
}

// SetupStatusHandler reports whether first-run setup has completed.
func SetupStatusHandler(prefs *db.PreferenceStore, users *db.UserStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pref, err := prefs.Get(r.Context())
		if err != nil && !errors.Is(err, db.ErrNotSetUp) {
			envelope.Error(w, r, log, err)
			return
		}
		count, err := users.Count(r.Context())
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}

		var view *preferenceView
		if pref != nil {
			view = &preferenceView{SystemName: pref.SystemName, AllowRegistration: pref.AllowRegistration}
		}
		envelope.OK(w, map[string]any{
			"isSetupComplete":  pref != nil && count > 0,
			"systemPreference": view,
		})
	}
}

type setupRequest struct {
	SystemName        string `json:"systemName"`
	AllowRegistration *bool  `json:"allowRegistration"`
	AdminUsername     string `json:"adminUsername"`
	AdminPassword     string `json:"adminPassword"`
	AdminFullName     string `json:"adminFullName"`
}

func (req setupRequest) validate() error {
	switch {
	case strings.TrimSpace(req.SystemName) == "":
		return apperr.BadRequest("System name is required")
	case req.AllowRegistration == nil:
		return apperr.BadRequest("Allow registration must be a boolean")
	case strings.TrimSpace(req.AdminUsername) == "":
		return apperr.BadRequest("Admin username is required")
	case req.AdminPassword == "":
		return apperr.BadRequest("Admin password is required")
	case strings.TrimSpace(req.AdminFullName) == "":
		return apperr.BadRequest("Admin full name is required")
	}
	return nil
}

// SetupHandler performs first-run setup: it stores the system preferences and
// creates the first administrator. It succeeds once.
func SetupHandler(prefs *db.PreferenceStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		done, err := prefs.IsSetUp(r.Context())
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		if done {
			envelope.Error(w, r, log, db.ErrAlreadySetUp)
			return
		}

		var req setupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		if err := req.validate(); err != nil {
			envelope.Error(w, r, log, err)
			return
		}

		hash, err := session.HashPassword(req.AdminPassword)
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}

		pref := &models.SystemPreference{
			SystemName:        strings.TrimSpace(req.SystemName),
			AllowRegistration: *req.AllowRegistration,
		}
		admin := &models.User{
			Username:     strings.TrimSpace(req.AdminUsername),
			PasswordHash: hash,
			FullName:     strings.TrimSpace(req.AdminFullName),
		}
		if err := prefs.Setup(r.Context(), pref, admin); err != nil {
			if errors.Is(err, db.ErrConflict) {
				err = apperr.BadRequest("Username already exists")
			}
			envelope.Error(w, r, log, err)
			return
		}

		logging.FromContext(r.Context(), log).Info("system setup completed",
			slog.String("system_name", pref.SystemName),
			logging.UserID(admin.ID),
		)

		envelope.OK(w, map[string]any{
			"message":          "System setup completed successfully",
			"systemPreference": preferenceView{SystemName: pref.SystemName, AllowRegistration: pref.AllowRegistration},
			"adminUser":        viewUser(admin),
		})
	}
}

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/auth/session"
	"github.com/pysugar/unified-drive/internal/db"
	"github.com/pysugar/unified-drive/internal/db/models"
	"github.com/pysugar/unified-drive/internal/logging"
	"github.com/pysugar/unified-drive/internal/proxy/envelope"
)

// UserLoader fetches the account a session refers to.
type UserLoader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// RequireUser validates the session from the cookie or Bearer header and puts
// the current user into the request context. The user is reloaded on every
// request so deleted accounts and role changes take effect immediately.
func RequireUser(sessions *session.Manager, users UserLoader, log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := sessions.FromRequest(r)
			if err != nil {
				if !errors.Is(err, session.ErrNoSession) {
					logging.FromContext(r.Context(), log).Debug("rejected session", logging.Err(err))
				}
				envelope.Error(w, r, log, apperr.ErrUnauthenticated)
				return
			}

			user, err := users.FindByID(r.Context(), claims.Subject)
			if errors.Is(err, db.ErrNotFound) {
				envelope.Error(w, r, log, apperr.ErrUnauthenticated)
				return
			}
			if err != nil {
				envelope.Error(w, r, log, err)
				return
			}

			ctx := session.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects non-admin users. It must run after RequireUser.
func RequireAdmin(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := session.UserFromContext(r.Context())
			if !ok {
				envelope.Error(w, r, log, apperr.ErrUnauthenticated)
				return
			}
			if !user.IsAdmin() {
				envelope.Error(w, r, log, apperr.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

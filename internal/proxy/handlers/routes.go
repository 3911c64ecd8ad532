package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pysugar/unified-drive/internal/auth/google"
	"github.com/pysugar/unified-drive/internal/auth/session"
	"github.com/pysugar/unified-drive/internal/broker"
	"github.com/pysugar/unified-drive/internal/db"
	"github.com/pysugar/unified-drive/internal/metrics"
	"github.com/pysugar/unified-drive/internal/proxy/envelope"
	"github.com/pysugar/unified-drive/internal/proxy/middleware"
	"github.com/pysugar/unified-drive/internal/version"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Log       *slog.Logger
	Users     *db.UserStore
	Prefs     *db.PreferenceStore
	Creds     *db.CredentialStore
	Sessions  *session.Manager
	Handshake *google.Handshake
	Broker    *broker.Broker

	// BaseURL prefixes the redirects issued after the OAuth callback.
	BaseURL        string
	MaxUploadBytes int64
	MetricsEnabled bool

	// Ping checks the database for /healthz. Optional.
	Ping func(ctx context.Context) error
}

// NewRouter builds the full HTTP handler.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if d.MetricsEnabled {
		r.Use(metrics.Middleware())
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Get("/healthz", HealthHandler(d.Ping, log))

	requireUser := middleware.RequireUser(d.Sessions, d.Users, log)
	requireAdmin := middleware.RequireAdmin(log)

	r.Route("/api", func(r chi.Router) {
		r.Get("/setup/status", SetupStatusHandler(d.Prefs, d.Users, log))
		r.Post("/setup", SetupHandler(d.Prefs, log))

		r.Post("/auth/register", RegisterHandler(d.Prefs, d.Users, log))
		r.Post("/auth/login", LoginHandler(d.Users, d.Sessions, log))
		r.Post("/auth/logout", LogoutHandler(d.Sessions))
		r.With(requireUser).Get("/auth/me", MeHandler())

		r.Route("/google-oauth-client", func(r chi.Router) {
			r.Use(requireUser, requireAdmin)
			r.Get("/", GetOAuthClientHandler(d.Prefs, log))
			r.Post("/", SetOAuthClientHandler(d.Prefs, log))
			r.Delete("/", DeleteOAuthClientHandler(d.Prefs, log))
		})

		r.Route("/google-oauth", func(r chi.Router) {
			r.Get("/callback", CallbackHandler(d.Handshake, d.BaseURL, log))

			r.Group(func(r chi.Router) {
				r.Use(requireUser)
				r.Get("/authorize", AuthorizeHandler(d.Handshake, log))
				r.Get("/status", ConnectionStatusHandler(d.Creds, d.Prefs, log))
				r.Delete("/status", DisconnectHandler(d.Creds, log))
				r.Post("/switch-connection", SwitchConnectionHandler(d.Creds, log))
				r.Put("/connection-name", RenameConnectionHandler(d.Creds, log))
			})
		})

		r.Route("/files", func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/", ListFilesHandler(d.Broker, log))
			r.Post("/", UploadFileHandler(d.Broker, d.MaxUploadBytes, log))
			r.Get("/search", SearchFilesHandler(d.Broker, log))
			r.Post("/folders", CreateFolderHandler(d.Broker, log))
			r.Put("/rename", RenameFileHandler(d.Broker, log))
			r.Post("/upload-token", UploadTokenHandler(d.Broker, log))
			r.Get("/download/{id}", DownloadHandler(d.Broker, log))
			r.Get("/{id}", FileMetadataHandler(d.Broker, log))
			r.Delete("/{id}", DeleteFileHandler(d.Broker, log))
			r.Post("/{id}/share", ShareFileHandler(d.Broker, log))
		})
	})

	return r
}

// HealthHandler reports liveness and, when ping is set, database reachability.
func HealthHandler(ping func(ctx context.Context) error, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				envelope.Error(w, r, log, err)
				return
			}
		}
		envelope.OK(w, map[string]any{"status": "ok", "version": version.Version})
	}
}

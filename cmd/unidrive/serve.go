package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/pysugar/unified-drive/internal/auth/google"
	"github.com/pysugar/unified-drive/internal/auth/session"
	"github.com/pysugar/unified-drive/internal/auth/token"
	"github.com/pysugar/unified-drive/internal/broker"
	"github.com/pysugar/unified-drive/internal/config"
	"github.com/pysugar/unified-drive/internal/db"
	"github.com/pysugar/unified-drive/internal/drive"
	"github.com/pysugar/unified-drive/internal/logging"
	"github.com/pysugar/unified-drive/internal/proxy/handlers"
	"github.com/pysugar/unified-drive/internal/tracing"
	"github.com/pysugar/unified-drive/internal/version"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration comes from UNIDRIVE_* environment variables, an optional .env
file, and an optional YAML file named by UNIDRIVE_CONFIG.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	tracer, err := tracing.NewProvider(ctx, cfg.Tracing.Exporter, cfg.Tracing.OTLPEndpoint, version.Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", logging.Err(err))
		}
	}()

	database, err := db.InitDB(cfg.DB.Driver, cfg.DB.DSN, log)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer closeDB(database, log)

	router := buildRouter(cfg, database, log)

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("unidrive starting",
			slog.String("addr", cfg.ListenAddr()),
			slog.String("base_url", cfg.BaseURL),
			slog.String("version", version.String()),
			slog.String("db_driver", cfg.DB.Driver),
		)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shut down HTTP server: %w", err)
	}
	return nil
}

func buildRouter(cfg *config.Config, database *gorm.DB, log *slog.Logger) http.Handler {
	users := db.NewUserStore(database)
	prefs := db.NewPreferenceStore(database)
	creds := db.NewCredentialStore(database)

	oauthClient := google.NewClientConfig(prefs, cfg.OAuthRedirectURL(), nil)
	guard := token.NewGuard(creds, oauthClient, log, nil)
	drives := drive.NewFactory()
	negotiator := drive.NewNegotiator(guard, nil, drive.DefaultUploadBaseURL)

	return handlers.NewRouter(handlers.Deps{
		Log:      log,
		Users:    users,
		Prefs:    prefs,
		Creds:    creds,
		Sessions: session.NewManager(cfg.Session.Secret, cfg.Session.TTL, cfg.SecureCookies()),
		Handshake: google.NewHandshake(oauthClient, users, creds, drives, google.HandshakeOptions{
			RootFolderName: cfg.Drive.RootFolderName,
			StateSecret:    cfg.Session.Secret,
			Logger:         log,
		}),
		Broker:         broker.New(broker.NewResolver(creds), oauthClient, guard, drives, negotiator, log),
		BaseURL:        cfg.BaseURL,
		MaxUploadBytes: cfg.Drive.MaxUploadBytes,
		MetricsEnabled: cfg.MetricsEnabled,
		Ping: func(ctx context.Context) error {
			sqlDB, err := database.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})
}

func closeDB(database *gorm.DB, log *slog.Logger) {
	sqlDB, err := database.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("closing database failed", logging.Err(err))
	}
}

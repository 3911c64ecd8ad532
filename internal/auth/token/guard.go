// Package token keeps per-connection Google access tokens fresh.
package token

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/db/models"
	"github.com/pysugar/unified-drive/internal/logging"
	"github.com/pysugar/unified-drive/internal/metrics"
	"golang.org/x/oauth2"
)

// Margin is the minimum remaining lifetime an access token must have before
// it is handed to a Drive call.
const Margin = 5 * time.Minute

// fallbackLifetime applies when the token endpoint omits expires_in.
const fallbackLifetime = time.Hour

// Store persists refreshed tokens.
type Store interface {
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error
}

// ConfigSource yields the OAuth client used for refresh exchanges.
type ConfigSource interface {
	OAuthConfig(ctx context.Context) (*oauth2.Config, error)
}

// Guard refreshes a credential's access token when it is within Margin of
// expiry. It holds no token state of its own: the credential passed in is the
// request's snapshot and is updated in place.
type Guard struct {
	store  Store
	source ConfigSource
	log    *slog.Logger
	now    func() time.Time
}

// NewGuard creates a guard. now may be nil to use the wall clock.
func NewGuard(store Store, source ConfigSource, log *slog.Logger, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Guard{
		store:  store,
		source: source,
		log:    logging.WithComponent(log, "token_guard"),
		now:    now,
	}
}

// NeedsRefresh reports whether cred expires within Margin of now.
func (g *Guard) NeedsRefresh(cred *models.Credential) bool {
	return cred.ExpiresAt.Sub(g.now()) < Margin
}

// Ensure refreshes cred if needed and persists the result before returning.
// Any failure, including failing to persist a successful exchange, is
// reported as apperr.ErrTokenRefreshFailed.
func (g *Guard) Ensure(ctx context.Context, cred *models.Credential) error {
	if !g.NeedsRefresh(cred) {
		return nil
	}

	log := logging.FromContext(ctx, g.log).With(
		logging.UserID(cred.UserID),
		logging.Connection(cred.ID),
	)

	cfg, err := g.source.OAuthConfig(ctx)
	if err != nil {
		return err
	}

	newToken, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		if isPermanentRefreshError(err) {
			metrics.ObserveTokenRefresh("permanent")
			log.Warn("refresh token rejected, connection needs to be re-authorized", logging.Err(err))
		} else {
			metrics.ObserveTokenRefresh("transient")
			log.Warn("token refresh failed", logging.Err(err))
		}
		return apperr.TokenRefreshFailed(err)
	}

	expiresAt := newToken.Expiry
	if expiresAt.IsZero() {
		expiresAt = g.now().Add(fallbackLifetime)
	}

	// Google may rotate the refresh token; an empty one means keep the old.
	rotated := ""
	if newToken.RefreshToken != "" && newToken.RefreshToken != cred.RefreshToken {
		rotated = newToken.RefreshToken
		log.Info("rotating refresh token")
	}

	if err := g.store.UpdateTokens(ctx, cred.ID, newToken.AccessToken, rotated, expiresAt); err != nil {
		metrics.ObserveTokenRefresh("persist_failed")
		log.Error("failed to persist refreshed token", logging.Err(err))
		return apperr.TokenRefreshFailed(fmt.Errorf("persist refreshed token: %w", err))
	}

	cred.AccessToken = newToken.AccessToken
	cred.ExpiresAt = expiresAt
	if rotated != "" {
		cred.RefreshToken = rotated
	}

	metrics.ObserveTokenRefresh("ok")
	log.Info("refreshed access token",
		slog.String("token", logging.MaskToken(cred.AccessToken)),
		slog.Time("expires_at", expiresAt))
	return nil
}

// TokenSource adapts the guard to oauth2.TokenSource so an HTTP client built
// on it re-checks the margin before every request.
func (g *Guard) TokenSource(ctx context.Context, cred *models.Credential) oauth2.TokenSource {
	return &guardedSource{ctx: ctx, guard: g, cred: cred}
}

type guardedSource struct {
	ctx   context.Context
	guard *Guard
	mu    sync.Mutex
	cred  *models.Credential
}

func (s *guardedSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard.Ensure(s.ctx, s.cred); err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: s.cred.AccessToken,
		TokenType:   "Bearer",
		Expiry:      s.cred.ExpiresAt,
	}, nil
}

func isPermanentRefreshError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	permanentMarkers := []string{
		"invalid_grant",
		"invalid_client",
		"unauthorized_client",
		"token has been expired or revoked",
		"revoked",
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

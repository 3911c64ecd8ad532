// Package google runs the Google OAuth handshake that connects a Drive
// account to a user, and supplies the system OAuth client to other packages.
package google

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/db"
	"github.com/pysugar/unified-drive/internal/db/models"
)

// DriveScope grants full access to the user's Drive.
const DriveScope = "https://www.googleapis.com/auth/drive"

// Scopes requested on every authorization.
var Scopes = []string{DriveScope}

// PreferenceReader reads the system preference row.
type PreferenceReader interface {
	Get(ctx context.Context) (*models.SystemPreference, error)
}

// ClientConfig builds the oauth2.Config from the administrator-managed client
// stored in system preferences. It is read on every call so a rotated client
// takes effect without a restart.
type ClientConfig struct {
	prefs       PreferenceReader
	redirectURL string
	endpoint    oauth2.Endpoint
}

// NewClientConfig uses Google's endpoint unless endpoint is non-nil.
func NewClientConfig(prefs PreferenceReader, redirectURL string, endpoint *oauth2.Endpoint) *ClientConfig {
	c := &ClientConfig{prefs: prefs, redirectURL: redirectURL, endpoint: googleOAuth.Endpoint}
	if endpoint != nil {
		c.endpoint = *endpoint
	}
	return c
}

// OAuthConfig returns apperr.ErrNotConfigured when no client is set.
func (c *ClientConfig) OAuthConfig(ctx context.Context) (*oauth2.Config, error) {
	pref, err := c.prefs.Get(ctx)
	if errors.Is(err, db.ErrNotSetUp) {
		return nil, apperr.NotConfigured("")
	}
	if err != nil {
		return nil, err
	}
	if !pref.IsOAuthConfigured() {
		return nil, apperr.NotConfigured("")
	}

	return &oauth2.Config{
		ClientID:     pref.GoogleOAuthClientID,
		ClientSecret: pref.GoogleOAuthClientSecret,
		RedirectURL:  c.redirectURL,
		Scopes:       Scopes,
		Endpoint:     c.endpoint,
	}, nil
}

package google

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/pysugar/unified-drive/internal/db"
	"github.com/pysugar/unified-drive/internal/db/models"
	"github.com/pysugar/unified-drive/internal/drive"
	"github.com/pysugar/unified-drive/internal/logging"
)

// Browser destinations after the callback.
const (
	RedirectDenied  = "/?error=oauth_denied"
	RedirectFailed  = "/?error=oauth_failed"
	RedirectSuccess = "/?oauth_success=true"
)

// DefaultRootFolderName is the Drive folder each connection is rooted at.
const DefaultRootFolderName = "Unified Drive"

// fallbackLifetime applies when the token response omits expires_in.
const fallbackLifetime = time.Hour

// UserFinder looks up local users.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// GrantStore persists handshake results.
type GrantStore interface {
	UpsertGrant(ctx context.Context, g db.Grant) (*models.Credential, bool, error)
}

// Handshake runs authorize and callback for one deployment.
type Handshake struct {
	config     *ClientConfig
	users      UserFinder
	grants     GrantStore
	drives     *drive.Factory
	rootFolder string
	state      stateCodec
	log        *slog.Logger
}

// HandshakeOptions configures a Handshake.
type HandshakeOptions struct {
	RootFolderName string
	// StateSecret signs the state parameter.
	StateSecret string
	Now         func() time.Time
	Logger      *slog.Logger
}

func NewHandshake(config *ClientConfig, users UserFinder, grants GrantStore, drives *drive.Factory, opts HandshakeOptions) *Handshake {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rootFolder := strings.TrimSpace(opts.RootFolderName)
	if rootFolder == "" {
		rootFolder = DefaultRootFolderName
	}
	return &Handshake{
		config:     config,
		users:      users,
		grants:     grants,
		drives:     drives,
		rootFolder: rootFolder,
		state:      stateCodec{secret: []byte(opts.StateSecret), now: now},
		log:        logging.WithComponent(opts.Logger, "oauth_handshake"),
	}
}

// AuthorizeURL returns Google's consent URL for connecting a Drive under
// connectionName (default "My Drive").
func (h *Handshake) AuthorizeURL(ctx context.Context, userID, connectionName string) (string, error) {
	cfg, err := h.config.OAuthConfig(ctx)
	if err != nil {
		return "", err
	}

	connectionName = strings.TrimSpace(connectionName)
	if connectionName == "" {
		connectionName = models.DefaultConnectionName
	}
	if _, err := db.NormalizeConnectionName(connectionName); err != nil {
		return "", err
	}

	state, err := h.state.encode(userID, connectionName)
	if err != nil {
		return "", err
	}

	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

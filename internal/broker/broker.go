// Package broker gives request handlers Drive access on behalf of a user.
//
// Open resolves the user's connection once and returns a Session fixed to that
// credential. Every Session operation runs the token guard before touching
// Drive, so a refreshed token is persisted before the call goes out.
package broker

import (
	"context"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/pysugar/unified-drive/internal/auth/token"
	"github.com/pysugar/unified-drive/internal/db/models"
	"github.com/pysugar/unified-drive/internal/drive"
	"github.com/pysugar/unified-drive/internal/logging"
)

// Guard keeps a credential's access token fresh.
type Guard interface {
	Ensure(ctx context.Context, cred *models.Credential) error
	TokenSource(ctx context.Context, cred *models.Credential) oauth2.TokenSource
}

var _ Guard = (*token.Guard)(nil)

// Broker opens per-request Drive sessions.
type Broker struct {
	resolver   *Resolver
	oauth      token.ConfigSource
	guard      Guard
	factory    *drive.Factory
	negotiator *drive.Negotiator
	log        *slog.Logger
}

// New wires a Broker. oauth is consulted only to fail fast when the system
// OAuth client is missing.
func New(resolver *Resolver, oauth token.ConfigSource, guard Guard, factory *drive.Factory, negotiator *drive.Negotiator, log *slog.Logger) *Broker {
	return &Broker{
		resolver:   resolver,
		oauth:      oauth,
		guard:      guard,
		factory:    factory,
		negotiator: negotiator,
		log:        logging.WithComponent(log, "broker"),
	}
}

// Open resolves the connection for userID (connectionID may be empty) and
// returns a Session bound to it for the rest of the request.
func (b *Broker) Open(ctx context.Context, userID, connectionID string) (*Session, error) {
	res, err := b.resolver.Resolve(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	if _, err := b.oauth.OAuthConfig(ctx); err != nil {
		return nil, err
	}

	cred := res.Credential
	client, err := b.factory.NewClient(ctx, b.guard.TokenSource(ctx, cred))
	if err != nil {
		return nil, err
	}

	return &Session{
		cred:       cred,
		client:     client,
		guard:      b.guard,
		negotiator: b.negotiator,
		log: logging.FromContext(ctx, b.log).With(
			logging.UserID(userID),
			logging.Connection(cred.ID),
		),
	}, nil
}

package broker

import (
	"context"
	"errors"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/db"
	"github.com/pysugar/unified-drive/internal/db/models"
)

// ResolutionKind discriminates the outcome of connection selection.
type ResolutionKind int

const (
	Found ResolutionKind = iota
	NotConnected
	NotFound
)

func (k ResolutionKind) String() string {
	switch k {
	case Found:
		return "found"
	case NotConnected:
		return "not_connected"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

// Resolution is the selected credential, or why there is none.
type Resolution struct {
	Kind       ResolutionKind
	Credential *models.Credential
}

// Err converts a non-Found resolution into the API error for it.
func (r Resolution) Err() error {
	switch r.Kind {
	case Found:
		return nil
	case NotFound:
		return apperr.NotFound("Connection not found")
	default:
		return apperr.NotConnected()
	}
}

// CredentialFinder is the read side of the credential store.
type CredentialFinder interface {
	FindByIDAndUser(ctx context.Context, id, userID string) (*models.Credential, error)
	FindByUser(ctx context.Context, userID string) ([]models.Credential, error)
}

// Resolver selects the credential a request acts through: an explicit id
// owned by the user, else the active credential, else the first one in store
// order.
type Resolver struct {
	store CredentialFinder
}

func NewResolver(store CredentialFinder) *Resolver {
	return &Resolver{store: store}
}

// Resolve never returns an error for "no such credential"; that is reported
// through Resolution.Kind. Errors are store failures only.
func (r *Resolver) Resolve(ctx context.Context, userID, connectionID string) (Resolution, error) {
	if connectionID != "" {
		cred, err := r.store.FindByIDAndUser(ctx, connectionID, userID)
		if errors.Is(err, db.ErrNotFound) {
			return Resolution{Kind: NotFound}, nil
		}
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Kind: Found, Credential: cred}, nil
	}

	creds, err := r.store.FindByUser(ctx, userID)
	if err != nil {
		return Resolution{}, err
	}
	if len(creds) == 0 {
		return Resolution{Kind: NotConnected}, nil
	}
	for i := range creds {
		if creds[i].IsActive {
			return Resolution{Kind: Found, Credential: &creds[i]}, nil
		}
	}
	return Resolution{Kind: Found, Credential: &creds[0]}, nil
}

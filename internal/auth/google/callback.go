package google

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/db"
	"github.com/pysugar/unified-drive/internal/logging"
)

// CallbackParams are the query parameters Google sends back.
type CallbackParams struct {
	Code  string
	State string
	Error string
}

// Complete finishes an authorization attempt and returns where to send the
// browser. Errors are returned only for requests that never came from a
// legitimate consent screen (missing or forged state, unknown user, no OAuth
// client); everything after that ends in a redirect.
func (h *Handshake) Complete(ctx context.Context, p CallbackParams) (string, error) {
	log := logging.FromContext(ctx, h.log)

	if p.Error != "" {
		log.Info("user denied consent", "reason", p.Error)
		return RedirectDenied, nil
	}
	if p.Code == "" || p.State == "" {
		return "", apperr.BadRequest("Missing authorization code or state")
	}

	state, err := h.state.decode(p.State)
	if err != nil {
		log.Warn("rejected oauth state", logging.Err(err))
		return "", apperr.BadRequest("Invalid authorization state")
	}
	log = log.With(logging.UserID(state.UserID))

	if _, err := h.users.FindByID(ctx, state.UserID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", apperr.NotFound("User not found")
		}
		return "", err
	}

	cfg, err := h.config.OAuthConfig(ctx)
	if err != nil {
		return "", err
	}

	tok, err := cfg.Exchange(ctx, p.Code)
	if err != nil {
		log.Error("authorization code exchange failed", logging.Err(err))
		return RedirectFailed, nil
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		log.Error("token response is missing the access or refresh token")
		return RedirectFailed, nil
	}

	grant := db.Grant{
		UserID:            state.UserID,
		ConnectionName:    state.ConnectionName,
		AccessToken:       tok.AccessToken,
		RefreshToken:      tok.RefreshToken,
		ExpiresAt:         tok.Expiry,
		Scope:             grantedScope(tok),
		DriveRootFolderID: h.resolveRootFolder(ctx, tok),
	}
	if grant.ExpiresAt.IsZero() {
		grant.ExpiresAt = h.state.now().Add(fallbackLifetime)
	}

	cred, created, err := h.grants.UpsertGrant(ctx, grant)
	if err != nil {
		log.Error("failed to store credential", logging.Err(err))
		return RedirectFailed, nil
	}

	log.Info("drive connected",
		logging.Connection(cred.ID),
		"connection_name", cred.ConnectionName,
		"created", created,
		"active", cred.IsActive,
		"root_resolved", grant.DriveRootFolderID != "")
	return RedirectSuccess, nil
}

// resolveRootFolder finds or creates the namespace folder. Failure is logged
// and yields "", leaving any stored root untouched.
func (h *Handshake) resolveRootFolder(ctx context.Context, tok *oauth2.Token) string {
	log := logging.FromContext(ctx, h.log)

	client, err := h.drives.NewClient(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		log.Warn("failed to create drive client for root folder", logging.Err(err))
		return ""
	}
	id, err := client.FindOrCreateFolder(ctx, h.rootFolder)
	if err != nil {
		log.Warn("failed to find or create root folder", "folder", h.rootFolder, logging.Err(err))
		return ""
	}
	return id
}

func grantedScope(tok *oauth2.Token) string {
	if s, ok := tok.Extra("scope").(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return strings.Join(Scopes, " ")
}

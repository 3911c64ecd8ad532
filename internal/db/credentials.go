package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pysugar/unified-drive/internal/db/models"
	"gorm.io/gorm"
)

// MaxConnectionNameLength bounds user-facing connection labels (in runes).
const MaxConnectionNameLength = 50

// CredentialStore persists Google OAuth credentials, one per (user, connection name).
//
// Rules enforced here rather than in callers:
//   - connection names are unique per user
//   - a user's first credential is created active, later ones inactive
//   - switching the active credential and deleting the active credential
//     each run in one transaction, so no caller observes zero or two actives
type CredentialStore struct {
	db *gorm.DB
}

// NewCredentialStore wraps a database handle.
func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// NormalizeConnectionName trims name and checks its length. An empty name
// after trimming is rejected; callers substitute the default beforehand.
func NormalizeConnectionName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxConnectionNameLength {
		return "", ErrInvalidConnectionName
	}
	return name, nil
}

// userOrder is the deterministic store ordering used for "first credential".
const userOrder = "created_at ASC, id ASC"

// Create inserts a credential. IsActive is decided here: true only when the
// user has no credentials yet. Duplicate names yield ErrConflict.
func (s *CredentialStore) Create(ctx context.Context, cred *models.Credential) error {
	name, err := NormalizeConnectionName(orDefault(cred.ConnectionName))
	if err != nil {
		return err
	}
	cred.ConnectionName = name

	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Credential{}).Where("user_id = ?", cred.UserID).Count(&count).Error; err != nil {
			return err
		}
		cred.IsActive = count == 0
		return tx.Create(cred).Error
	}))
}

// FindByUser returns all credentials of a user in store order.
func (s *CredentialStore) FindByUser(ctx context.Context, userID string) ([]models.Credential, error) {
	var creds []models.Credential
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(userOrder).
		Find(&creds).Error
	return creds, err
}

// FindByIDAndUser returns the credential only when userID owns it.
func (s *CredentialStore) FindByIDAndUser(ctx context.Context, id, userID string) (*models.Credential, error) {
	var cred models.Credential
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&cred).Error
	if err != nil {
		return nil, translate(err)
	}
	return &cred, nil
}

// FindByUserAndName looks a credential up by its unique (user, name) key.
func (s *CredentialStore) FindByUserAndName(ctx context.Context, userID, name string) (*models.Credential, error) {
	var cred models.Credential
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND connection_name = ?", userID, strings.TrimSpace(name)).
		First(&cred).Error
	if err != nil {
		return nil, translate(err)
	}
	return &cred, nil
}

// CountByUser returns how many credentials the user has.
func (s *CredentialStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Credential{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// UpdateTokens overwrites the token fields after a refresh. This is a blind
// last-write-wins update; concurrent refreshes of the same credential may
// interleave. An empty refreshToken keeps the stored one.
func (s *CredentialStore) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	updates := map[string]any{
		"access_token": accessToken,
		"expires_at":   expiresAt,
		"updated_at":   time.Now(),
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}

	res := s.db.WithContext(ctx).Model(&models.Credential{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRootFolder records the connection's namespace root folder.
func (s *CredentialStore) UpdateRootFolder(ctx context.Context, id, folderID string) error {
	res := s.db.WithContext(ctx).Model(&models.Credential{}).Where("id = ?", id).Update("drive_root_folder_id", folderID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Rename changes the connection label of a credential owned by userID.
func (s *CredentialStore) Rename(ctx context.Context, userID, id, name string) (*models.Credential, error) {
	name, err := NormalizeConnectionName(name)
	if err != nil {
		return nil, err
	}

	var cred models.Credential
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&cred).Error; err != nil {
			return err
		}

		var clash int64
		if err := tx.Model(&models.Credential{}).
			Where("user_id = ? AND connection_name = ? AND id <> ?", userID, name, id).
			Count(&clash).Error; err != nil {
			return err
		}
		if clash > 0 {
			return ErrConflict
		}

		cred.ConnectionName = name
		return tx.Model(&cred).Update("connection_name", name).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &cred, nil
}

// SetActive makes id the user's only active credential.
func (s *CredentialStore) SetActive(ctx context.Context, userID, id string) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.Credential
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&target).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Credential{}).
			Where("user_id = ? AND id <> ?", userID, id).
			Update("is_active", false).Error; err != nil {
			return err
		}

		return tx.Model(&target).Update("is_active", true).Error
	}))
}

// Delete removes one credential owned by userID. If it was active, the oldest
// remaining credential of the user is promoted and returned.
func (s *CredentialStore) Delete(ctx context.Context, userID, id string) (*models.Credential, error) {
	var promoted *models.Credential

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.Credential
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&target).Error; err != nil {
			return err
		}

		if err := tx.Delete(&models.Credential{}, "id = ?", id).Error; err != nil {
			return err
		}

		if !target.IsActive {
			return nil
		}

		var next models.Credential
		err := tx.Where("user_id = ?", userID).Order(userOrder).First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&next).Update("is_active", true).Error; err != nil {
			return err
		}
		promoted = &next
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return promoted, nil
}

// DeleteAllForUser removes every credential of the user. No promotion runs
// because nothing remains.
func (s *CredentialStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&models.Credential{}, "user_id = ?", userID)
	return res.RowsAffected, res.Error
}

// Grant is the outcome of a completed OAuth handshake.
type Grant struct {
	UserID            string
	ConnectionName    string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         time.Time
	Scope             string
	DriveRootFolderID string // empty when root folder resolution failed
}

// UpsertGrant stores a handshake result. An existing (user, name) credential
// gets its tokens, scope and (when resolved) root folder replaced in place;
// otherwise a new credential is created, active only for a first connection.
func (s *CredentialStore) UpsertGrant(ctx context.Context, g Grant) (cred *models.Credential, created bool, err error) {
	name, err := NormalizeConnectionName(orDefault(g.ConnectionName))
	if err != nil {
		return nil, false, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Credential
		findErr := tx.Where("user_id = ? AND connection_name = ?", g.UserID, name).First(&existing).Error
		switch {
		case findErr == nil:
			updates := map[string]any{
				"access_token":  g.AccessToken,
				"refresh_token": g.RefreshToken,
				"expires_at":    g.ExpiresAt,
				"scope":         g.Scope,
			}
			if g.DriveRootFolderID != "" {
				updates["drive_root_folder_id"] = g.DriveRootFolderID
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
			cred = &existing
			return nil
		case !errors.Is(findErr, gorm.ErrRecordNotFound):
			return findErr
		}

		var count int64
		if err := tx.Model(&models.Credential{}).Where("user_id = ?", g.UserID).Count(&count).Error; err != nil {
			return err
		}

		cred = &models.Credential{
			UserID:            g.UserID,
			AccessToken:       g.AccessToken,
			RefreshToken:      g.RefreshToken,
			ExpiresAt:         g.ExpiresAt,
			Scope:             g.Scope,
			DriveRootFolderID: g.DriveRootFolderID,
			ConnectionName:    name,
			IsActive:          count == 0,
		}
		created = true
		return tx.Create(cred).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert credential: %w", translate(err))
	}
	return cred, created, nil
}

func orDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return models.DefaultConnectionName
	}
	return name
}

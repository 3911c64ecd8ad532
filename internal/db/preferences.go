package db

import (
	"context"
	"errors"

	"github.com/pysugar/unified-drive/internal/db/models"
	"gorm.io/gorm"
)

// PreferenceStore manages the singleton system_preferences row.
type PreferenceStore struct {
	db *gorm.DB
}

func NewPreferenceStore(db *gorm.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

// Get returns the preference row, or ErrNotSetUp when setup has not run.
func (s *PreferenceStore) Get(ctx context.Context) (*models.SystemPreference, error) {
	var pref models.SystemPreference
	err := s.db.WithContext(ctx).Order("id ASC").First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotSetUp
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// IsSetUp reports whether the preference row exists.
func (s *PreferenceStore) IsSetUp(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.SystemPreference{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Setup creates the preference row together with the first administrator.
// Running it twice returns ErrAlreadySetUp.
func (s *PreferenceStore) Setup(ctx context.Context, pref *models.SystemPreference, admin *models.User) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.SystemPreference{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadySetUp
		}
		if err := tx.Create(pref).Error; err != nil {
			return err
		}
		admin.Role = models.RoleAdmin
		return tx.Create(admin).Error
	}))
}

// SetOAuthClient stores the Google OAuth client used by every handshake and refresh.
func (s *PreferenceStore) SetOAuthClient(ctx context.Context, clientID, clientSecret string) (*models.SystemPreference, error) {
	pref, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(pref).Updates(map[string]any{
		"google_oauth_client_id":     clientID,
		"google_oauth_client_secret": clientSecret,
	}).Error
	if err != nil {
		return nil, err
	}
	pref.GoogleOAuthClientID = clientID
	pref.GoogleOAuthClientSecret = clientSecret
	return pref, nil
}

// ClearOAuthClient removes the Google OAuth client. Existing credentials stay
// in place but can no longer be refreshed until a client is configured again.
func (s *PreferenceStore) ClearOAuthClient(ctx context.Context) error {
	_, err := s.SetOAuthClient(ctx, "", "")
	return err
}

package models

import "time"

// SystemPreference is the singleton deployment-wide settings row. The Google
// OAuth client lives here rather than in process config so an administrator
// can rotate it at runtime.
type SystemPreference struct {
	ID                      uint `gorm:"primaryKey"`
	SystemName              string
	AllowRegistration       bool
	GoogleOAuthClientID     string `gorm:"column:google_oauth_client_id"`
	GoogleOAuthClientSecret string `gorm:"column:google_oauth_client_secret"`
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// IsOAuthConfigured reports whether both Google OAuth client fields are set.
func (p *SystemPreference) IsOAuthConfigured() bool {
	return p != nil && p.GoogleOAuthClientID != "" && p.GoogleOAuthClientSecret != ""
}

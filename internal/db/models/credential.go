package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultConnectionName labels a connection when the user does not name it.
const DefaultConnectionName = "My Drive"

// Credential stores one Google OAuth grant for one named connection of a user.
type Credential struct {
	ID                string `gorm:"primaryKey"` // UUID
	UserID            string `gorm:"not null;index;uniqueIndex:idx_credential_user_name,priority:1"`
	AccessToken       string `gorm:"type:text;not null"`
	RefreshToken      string `gorm:"type:text;not null"`
	ExpiresAt         time.Time
	Scope             string
	DriveRootFolderID string
	ConnectionName    string `gorm:"not null;default:'My Drive';uniqueIndex:idx_credential_user_name,priority:2"`
	IsActive          bool   `gorm:"not null;default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName keeps the table name stable regardless of struct renames.
func (Credential) TableName() string {
	return "google_oauth_credentials"
}

// BeforeCreate assigns a UUID when the caller did not.
func (c *Credential) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ConnectionName == "" {
		c.ConnectionName = DefaultConnectionName
	}
	return nil
}

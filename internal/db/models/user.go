package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User roles.
const (
	RoleAdmin  = "admin"
	RoleReader = "reader"
)

// User is a local account of the application (not a Google identity).
type User struct {
	ID           string `gorm:"primaryKey"` // UUID
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null" json:"-"`
	FullName     string
	Role         string `gorm:"not null;default:'reader';index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = RoleReader
	}
	return nil
}

// IsAdmin reports whether the user may manage system settings.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

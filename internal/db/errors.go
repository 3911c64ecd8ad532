package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a record does not exist or is not owned by the caller.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("record already exists")

	// ErrInvalidConnectionName is returned for empty or over-long connection names.
	ErrInvalidConnectionName = errors.New("connection name must be between 1 and 50 characters")

	// ErrAlreadySetUp is returned when setup runs a second time.
	ErrAlreadySetUp = errors.New("system is already set up")

	// ErrNotSetUp is returned when the preference row does not exist yet.
	ErrNotSetUp = errors.New("system is not set up yet")
)

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrConflict
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

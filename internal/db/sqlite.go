package db

import (
	"fmt"
	"log/slog"

	"github.com/pysugar/unified-drive/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the database for the given driver and runs migrations.
func InitDB(driver, dsn string, log *slog.Logger) (*gorm.DB, error) {
	database, err := Open(driver, dsn, logger.Warn)
	if err != nil {
		return nil, err
	}

	if err := Migrate(database); err != nil {
		return nil, err
	}

	if log != nil {
		log.Info("database ready", slog.String("driver", driver))
	}
	return database, nil
}

// Open connects without migrating. SQLite is limited to one open connection so
// that transactions serialize instead of failing with "database is locked".
func Open(driver, dsn string, level logger.LogLevel) (*gorm.DB, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	database, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		sqlDB, err := database.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return database, nil
}

// Migrate creates or updates every table the application owns.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.User{},
		&models.SystemPreference{},
		&models.Credential{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

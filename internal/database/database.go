package database

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fvckgrimm/discord-feed-notify/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

// Open connects to the configured database and brings the schema up to date.
// dbType is "postgres" or "sqlite"; anything else is treated as sqlite.
func Open(dbType, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dbType {
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		// Pure-Go driver registered by modernc.org/sqlite.
		dialector = sqlite.Dialector{DriverName: "sqlite", DSN: dsn}
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dbType, err)
	}

	if dbType != "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite allows a single writer; one connection also keeps ":memory:" databases intact.
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		slog.Warn("failed to close database", slog.Any("err", err))
	}
}

var migrations = []func(*gorm.DB) error{
	migrateToV1,
	// Add new migrations here
}

// Migrate applies every migration newer than the recorded schema version.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.SchemaVersion{}); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current models.SchemaVersion
	err := db.First(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// No version found, assume fresh install
		current = models.SchemaVersion{Version: 0}
		if err := db.Create(&current).Error; err != nil {
			return fmt.Errorf("seed schema_version: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	for i, migration := range migrations {
		version := i + 1
		if version <= current.Version {
			continue
		}

		slog.Info("running migration", slog.Int("version", version))
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration(tx); err != nil {
				return err
			}
			return tx.Model(&models.SchemaVersion{}).
				Where("version = ?", current.Version).
				Update("version", version).Error
		})
		if err != nil {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
		current.Version = version
		slog.Info("migration completed", slog.Int("version", version))
	}
	return nil
}

func migrateToV1(db *gorm.DB) error {
	// Initial schema
	return db.AutoMigrate(
		&models.VideoIdentity{},
		&models.LiveIdentity{},
		&models.Subscription{},
	)
}

// WithRetry runs operation again when SQLite reports the database as locked.
func WithRetry(operation func() error) error {
	const maxRetries = 5
	var err error
	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		time.Sleep(time.Duration(100*(i+1)) * time.Millisecond)
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

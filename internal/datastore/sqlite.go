package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/logger"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
}

func validateSQLiteConfig(path string) error {
	if path == "" {
		return errors.Newf("sqlite path must not be empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// Open opens the SQLite database file, creating it and its directory if
// needed, and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.SQLite.Path
	if err := validateSQLiteConfig(path); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.New(fmt.Errorf("create database directory: %w", err)).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Build()
		}
	}

	// WAL lets readers proceed during writes; busy_timeout waits out short locks
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(GetLogger(), store.Settings.SlowQuery),
	})
	if err != nil {
		return dbError(err, "open_sqlite", errors.PriorityCritical, "path", filepath.Base(path))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "open_sqlite", errors.PriorityCritical)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY between our own goroutines
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	store.DB = db
	GetLogger().Info("opened sqlite database", logger.String("path", path))
	return performAutoMigration(db, store.Debug, "sqlite")
}

// Engine returns "sqlite".
func (store *SQLiteStore) Engine() string { return "sqlite" }

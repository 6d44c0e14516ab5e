package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/logger"
	"github.com/brixfix/brixfix-go/internal/observability/metrics"
)

// migratedModels lists every table owned by the store.
var migratedModels = []any{&User{}, &Detection{}}

// performAutoMigration creates or updates the schema.
func performAutoMigration(db *gorm.DB, debug bool, dbType string) error {
	migrationStart := time.Now()
	migrationLogger := GetLogger().With(logger.String("db_type", dbType))

	migrationLogger.Debug("starting database migration")

	for _, model := range migratedModels {
		if err := db.AutoMigrate(model); err != nil {
			return dbError(err, "auto_migrate", errors.PriorityCritical, "db_type", dbType)
		}
	}

	if debug {
		migrationLogger.Debug("database migration completed",
			logger.Duration("total_duration", time.Since(migrationStart)),
			logger.Int("tables_migrated", len(migratedModels)))
	}
	return nil
}

// Migrate runs the schema migration on an open store.
func (ds *DataStore) Migrate(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpMigrate, start, err) }()

	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	return performAutoMigration(db, ds.Debug, db.Dialector.Name())
}

// Ping checks database connectivity and refreshes the pool gauges.
func (ds *DataStore) Ping(ctx context.Context) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "ping", errors.PriorityHigh)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dbError(err, "ping", errors.PriorityHigh)
	}

	stats := sqlDB.Stats()
	ds.metrics.UpdateConnections(stats.OpenConnections, stats.InUse)
	return nil
}

// Close closes the database connection. Closing an unopened store is an error.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return errors.New(ErrNotOpen).
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}

	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", errors.PriorityMedium)
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", errors.PriorityMedium)
	}

	ds.cache.flush()
	if ds.Debug {
		GetLogger().Debug("database connection closed")
	}
	return nil
}

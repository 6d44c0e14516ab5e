// Package datastore provides error handling helpers for database operations
package datastore

import (
	"fmt"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/brixfix/brixfix-go/internal/errors"
)

// Sentinel errors. Match them with errors.Is.
var (
	ErrStorage           = errors.NewStd("storage failure")
	ErrInvalidIdentity   = errors.NewStd("invalid user identity")
	ErrInvalidLabel      = errors.NewStd("invalid damage label")
	ErrInvalidConfidence = errors.NewStd("confidence must be between 0 and 100")
	ErrDuplicateUser     = errors.NewStd("user already exists")
	ErrUserNotFound      = errors.NewStd("user not found")
	ErrDetectionNotFound = errors.NewStd("detection not found")
	ErrNotOpen           = errors.NewStd("database connection is not initialized")
)

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// dbError wraps a driver or GORM failure as ErrStorage with context
func dbError(err error, operation, priority string, context ...any) error {
	builder := errors.New(fmt.Errorf("%w: %s: %w", ErrStorage, operation, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	if priority != "" {
		builder = builder.Priority(priority)
	}

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// validationError rejects an input before any write
func validationError(sentinel error, field string, value any) error {
	return errors.New(fmt.Errorf("%w: %s=%v", sentinel, field, value)).
		Component("datastore").
		Category(errors.CategoryValidation).
		Priority(errors.PriorityLow).
		Context("field", field).
		Build()
}

// conflictError creates a conflict error for constraint violations
func conflictError(sentinel error, operation, conflictType string) error {
	return errors.New(sentinel).
		Component("datastore").
		Category(errors.CategoryConflict).
		Priority(errors.PriorityLow).
		Context("operation", operation).
		Context("conflict_type", conflictType).
		Build()
}

// notFoundError creates a not found error (low priority)
func notFoundError(sentinel error, resource string) error {
	return errors.New(sentinel).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Priority(errors.PriorityLow).
		Context("resource", resource).
		Build()
}

// isDuplicateKey reports whether err is a unique constraint violation in
// SQLite or MySQL.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var mysqlErr *mysqldrv.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

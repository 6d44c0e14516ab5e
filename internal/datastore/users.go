package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/observability/metrics"
)

// CreateUser stores a new account. A taken email yields ErrDuplicateUser.
func (ds *DataStore) CreateUser(ctx context.Context, email, passwordHash string) (user *User, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpCreateUser, start, err) }()

	email = NormalizeEmail(email)
	if email == "" {
		return nil, validationError(ErrInvalidIdentity, "email", "")
	}
	if passwordHash == "" {
		return nil, validationError(ErrInvalidIdentity, "password_hash", "")
	}

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}

	user = &User{Email: email, PasswordHash: passwordHash}
	if err := db.Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, conflictError(ErrDuplicateUser, "create_user", "email")
		}
		return nil, dbError(err, "create_user", errors.PriorityHigh)
	}
	return user, nil
}

// GetUserByEmail returns the account for email or ErrUserNotFound.
func (ds *DataStore) GetUserByEmail(ctx context.Context, email string) (user *User, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpGetUser, start, err) }()

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}

	user = &User{}
	err = db.Where("email = ?", NormalizeEmail(email)).Take(user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError(ErrUserNotFound, "user")
	}
	if err != nil {
		return nil, dbError(err, "get_user", errors.PriorityMedium)
	}
	return user, nil
}

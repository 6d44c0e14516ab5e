// Package auth implements registration and password login for dashboard
// and API users.
package auth

import (
	"context"
	"regexp"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/brixfix/brixfix-go/internal/datastore"
	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/logger"
)

const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 6
	// maxPasswordBytes is the bcrypt input limit.
	maxPasswordBytes = 72
)

var emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

// UserStore is the subset of the datastore used for accounts.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*datastore.User, error)
	GetUserByEmail(ctx context.Context, email string) (*datastore.User, error)
}

// RegisterRequest carries a registration form. ConfirmPassword is checked
// only when non-empty.
type RegisterRequest struct {
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// Service registers and authenticates users.
type Service struct {
	store UserStore
	cost  int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService returns a Service hashing with the given bcrypt cost. A cost
// outside bcrypt's range falls back to bcrypt.DefaultCost.
func NewService(store UserStore, cost int) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{store: store, cost: cost}
}

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Register validates req, hashes the password and creates the account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*datastore.User, error) {
	email := datastore.NormalizeEmail(req.Email)

	switch {
	case email == "" || req.Password == "":
		return nil, validationError(ErrMissingFields, "email")
	case !ValidEmail(email):
		return nil, validationError(ErrInvalidEmail, "email")
	case len(req.Password) < MinPasswordLength:
		return nil, validationError(ErrPasswordTooShort, "password")
	case len(req.Password) > maxPasswordBytes:
		return nil, validationError(ErrPasswordTooLong, "password")
	case req.ConfirmPassword != "" && req.ConfirmPassword != req.Password:
		return nil, validationError(ErrPasswordMismatch, "confirm_password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategorySystem).
			Context("operation", "hash_password").
			Build()
	}

	user, err := s.store.CreateUser(ctx, email, string(hash))
	if err != nil {
		if errors.Is(err, datastore.ErrDuplicateUser) {
			GetLogger().Info("registration rejected", logger.String("reason", "email taken"))
			return nil, errors.New(ErrEmailTaken).
				Component(componentName).
				Category(errors.CategoryConflict).
				Priority(errors.PriorityLow).
				Build()
		}
		return nil, err
	}

	GetLogger().Info("user registered", logger.Uint64("user_id", uint64(user.ID)))
	return user, nil
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords return the same ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*datastore.User, error) {
	email = datastore.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, validationError(ErrMissingFields, "email")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, datastore.ErrUserNotFound) {
			// spend the same bcrypt time as a real comparison
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			GetLogger().Info("login failed", logger.String("reason", "unknown email"))
			return nil, credentialError()
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		GetLogger().Info("login failed",
			logger.String("reason", "password mismatch"),
			logger.Uint64("user_id", uint64(user.ID)))
		return nil, credentialError()
	}

	GetLogger().Debug("login succeeded", logger.Uint64("user_id", uint64(user.ID)))
	return user, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("brixfix-dummy-password"), s.cost)
	})
	return s.dummyHash
}

package auth

import (
	"github.com/brixfix/brixfix-go/internal/errors"
)

const componentName = "auth"

var (
	ErrMissingFields      = errors.NewStd("email and password are required")
	ErrInvalidEmail       = errors.NewStd("invalid email format")
	ErrPasswordTooShort   = errors.NewStd("password is too short")
	ErrPasswordTooLong    = errors.NewStd("password is too long")
	ErrPasswordMismatch   = errors.NewStd("passwords do not match")
	ErrEmailTaken         = errors.NewStd("email is already registered")
	ErrInvalidCredentials = errors.NewStd("invalid email or password")
)

func validationError(sentinel error, field string) error {
	return errors.New(sentinel).
		Component(componentName).
		Category(errors.CategoryValidation).
		Priority(errors.PriorityLow).
		Context("field", field).
		Build()
}

func credentialError() error {
	return errors.New(ErrInvalidCredentials).
		Component(componentName).
		Category(errors.CategoryAuthentication).
		Priority(errors.PriorityLow).
		Build()
}

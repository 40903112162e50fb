package services

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

const minPasswordLength = 8

var (
	ErrEmailRequired    = errors.New("email is required")
	ErrInvalidEmail     = errors.New("email is not valid")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// validate uses the same rules gin applies to `binding` tags, so service
// callers outside HTTP (the CLI) get the same email check as the handlers.
var validate = validator.New()

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	if err := validate.Var(email, "email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// ValidateNewPassword reports why password cannot be set, or nil.
func ValidateNewPassword(password, confirm string) error {
	if strings.TrimSpace(password) == "" {
		return ErrPasswordRequired
	}
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

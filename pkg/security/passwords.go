package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"samudra-ledger/registry-backend/pkg/apperrors"
)

// HashPassword returns the bcrypt hash stored on the user record.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", apperrors.Validation("Password is required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperrors.Validation("Password is too long")
		}
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword checks password against a stored hash.
func VerifyPassword(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return apperrors.Unauthenticated("Invalid email or password")
		}
		return fmt.Errorf("could not verify password: %w", err)
	}
	return nil
}

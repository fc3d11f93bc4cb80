// Package auth is the password hashing collaborator: one-way bcrypt hash on
// registration, constant-time compare on login.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 4

var (
	ErrWeakPassword       = errors.New("password must be at least 4 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// HashPassword validates length and returns the bcrypt hash. The store only
// ever sees the opaque hash.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a stored hash against a login attempt. Any
// mismatch maps to ErrInvalidCredentials so callers cannot tell a wrong
// password from a corrupt hash.
func VerifyPassword(hash, password string) error {
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

package auth

import (
	"github.com/example/ec-storefront/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort   = apperr.New(apperr.KindValidation, "password must be at least 8 characters")
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "invalid email or password")
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	return hashPassword(password, bcryptCost)
}

func hashPassword(password string, cost int) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

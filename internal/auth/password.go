package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"go.pilab.hu/solosso/config"
	"go.pilab.hu/solosso/services"
	"golang.org/x/crypto/bcrypt"
)

// ErrMismatchedPassword is returned by PlainPasswordHasher.Verify.
var ErrMismatchedPassword = errors.New("password does not match stored secret")

// PlainPasswordHasher treats the stored secret as the password itself and
// compares in constant time. Hashing, if any, is up to the directory.
type PlainPasswordHasher struct{}

// Hash returns the password unchanged.
func (PlainPasswordHasher) Hash(password string) (string, error) {
	return password, nil
}

// Verify compares the stored secret with the supplied password.
func (PlainPasswordHasher) Verify(storedSecret, password string) error {
	if subtle.ConstantTimeCompare([]byte(storedSecret), []byte(password)) != 1 {
		return ErrMismatchedPassword
	}
	return nil
}

// BcryptPasswordHasher implements the services.PasswordHasher interface using bcrypt.
type BcryptPasswordHasher struct {
	Cost int
}

// NewBcryptPasswordHasher creates a new BcryptPasswordHasher.
// Default cost is bcrypt.DefaultCost if cost <= 0.
func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{Cost: cost}
}

// Hash generates a bcrypt hash for the given password.
func (h *BcryptPasswordHasher) Hash(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash generation failed: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a bcrypt hashed password with its possible plaintext equivalent.
func (h *BcryptPasswordHasher) Verify(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// NewPasswordHasher returns the hasher for a configured scheme.
func NewPasswordHasher(scheme string) (services.PasswordHasher, error) {
	switch scheme {
	case config.PasswordPlain, "":
		return PlainPasswordHasher{}, nil
	case config.PasswordBcrypt:
		return NewBcryptPasswordHasher(bcrypt.DefaultCost), nil
	default:
		return nil, fmt.Errorf("unknown password scheme %q", scheme)
	}
}

var (
	_ services.PasswordHasher = PlainPasswordHasher{}
	_ services.PasswordHasher = (*BcryptPasswordHasher)(nil)
)

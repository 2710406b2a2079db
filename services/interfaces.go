package services

import (
	"time"

	"go.pilab.hu/solosso/token"
)

// PasswordHasher prepares and checks stored user secrets.
// Verify returns nil only when password matches the stored secret.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(storedSecret, password string) error
}

// TokenIssuer mints access tokens for a session and verifies them later.
type TokenIssuer interface {
	Mint(subjectID, sessionID string, ttl time.Duration) (string, error)
	Parse(raw string) (*token.Claims, error)
}

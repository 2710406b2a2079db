package cache

import (
	"context"
	"errors"
	"time"
)

// ErrTokenNotCached is returned by Get when the token has no live entry.
var ErrTokenNotCached = errors.New("token not cached")

// TokenEntry holds the verified claims of an access token.
type TokenEntry struct {
	SessionID string    // Session the token was minted for
	UserID    string    // Token subject
	ExpiresAt time.Time // Token expiry; the entry never outlives it
	CachedAt  time.Time
}

// TokenStore caches verified tokens, keyed by the hash of the raw token.
type TokenStore interface {
	Set(ctx context.Context, token string, entry *TokenEntry) error
	Get(ctx context.Context, token string) (*TokenEntry, error)
	Count(ctx context.Context) int
}

package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultMaxTTL caps entries of a store built without a positive maxTTL.
const DefaultMaxTTL = time.Minute

// MemoryTokenStore implements TokenStore using ttlcache.
type MemoryTokenStore struct {
	cache  *ttlcache.Cache[string, *TokenEntry]
	maxTTL time.Duration
	now    func() time.Time
}

// NewMemoryTokenStore creates an in-memory token store with automatic cleanup.
// Entries live until the token expires or maxTTL elapses, whichever is first.
// A non-positive maxTTL is replaced by DefaultMaxTTL.
func NewMemoryTokenStore(maxTTL time.Duration) *MemoryTokenStore {
	if maxTTL <= 0 {
		maxTTL = DefaultMaxTTL
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *TokenEntry](maxTTL),
		ttlcache.WithDisableTouchOnHit[string, *TokenEntry](),
	)

	// Start the cleanup process
	go cache.Start()

	return &MemoryTokenStore{
		cache:  cache,
		maxTTL: maxTTL,
		now:    time.Now,
	}
}

// Set implements TokenStore.Set. Already expired tokens are not stored.
func (s *MemoryTokenStore) Set(_ context.Context, token string, entry *TokenEntry) error {
	ttl := entry.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	if entry.CachedAt.IsZero() {
		entry.CachedAt = s.now()
	}
	s.cache.Set(HashToken(token), entry, ttl)
	return nil
}

// Get implements TokenStore.Get.
func (s *MemoryTokenStore) Get(_ context.Context, token string) (*TokenEntry, error) {
	item := s.cache.Get(HashToken(token))
	if item == nil || item.IsExpired() {
		return nil, ErrTokenNotCached
	}

	entry := item.Value()
	if !s.now().Before(entry.ExpiresAt) {
		return nil, ErrTokenNotCached
	}
	copied := *entry
	return &copied, nil
}

// Count implements TokenStore.Count.
func (s *MemoryTokenStore) Count(_ context.Context) int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemoryTokenStore) Close() error {
	s.cache.Stop()
	return nil
}

var _ TokenStore = (*MemoryTokenStore)(nil)

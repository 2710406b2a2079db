package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStore_SetGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore(time.Minute)
	defer store.Close()

	entry := &TokenEntry{SessionID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Set(ctx, "raw-token", entry))
	assert.Equal(t, 1, store.Count(ctx))

	got, err := store.Get(ctx, "raw-token")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "u1", got.UserID)
	assert.False(t, got.CachedAt.IsZero())

	_, err = store.Get(ctx, "other-token")
	assert.ErrorIs(t, err, ErrTokenNotCached)
}

func TestMemoryTokenStore_SkipsExpiredTokens(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore(time.Minute)
	defer store.Close()

	entry := &TokenEntry{SessionID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(-time.Second)}
	require.NoError(t, store.Set(ctx, "raw-token", entry))

	assert.Equal(t, 0, store.Count(ctx))
	_, err := store.Get(ctx, "raw-token")
	assert.ErrorIs(t, err, ErrTokenNotCached)
}

func TestMemoryTokenStore_EntryNeverOutlivesToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore(time.Hour)
	defer store.Close()

	now := time.Now()
	store.now = func() time.Time { return now }
	require.NoError(t, store.Set(ctx, "raw-token", &TokenEntry{SessionID: "s1", ExpiresAt: now.Add(time.Minute)}))

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err := store.Get(ctx, "raw-token")
	assert.ErrorIs(t, err, ErrTokenNotCached)
}

func TestMemoryTokenStore_NonPositiveMaxTTLStillExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore(0)
	defer store.Close()

	assert.Equal(t, DefaultMaxTTL, store.maxTTL)

	require.NoError(t, store.Set(ctx, "raw-token", &TokenEntry{SessionID: "s1", ExpiresAt: time.Now().Add(time.Hour)}))
	item := store.cache.Get(HashToken("raw-token"))
	require.NotNil(t, item)
	assert.Equal(t, DefaultMaxTTL, item.TTL())
	assert.False(t, item.ExpiresAt().IsZero())
}

func TestHashToken(t *testing.T) {
	assert.Len(t, HashToken("abc"), 64)
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
}

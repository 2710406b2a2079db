package registry_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.pilab.hu/solosso/domain"
	"go.pilab.hu/solosso/registry"
)

func user(name string) domain.User {
	return domain.User{ID: "id-" + name, Username: name, Nickname: name}
}

func countFor(sessions []domain.Session, username string) int {
	n := 0
	for _, s := range sessions {
		if s.Username == username {
			n++
		}
	}
	return n
}

func TestMemoryRegistry_RegisterAndConflict(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	reg := registry.NewMemoryRegistry(registry.WithClock(func() time.Time { return fixed }))

	first, err := reg.Register(ctx, user("alice"))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "alice", first.Username)
	assert.Equal(t, "id-alice", first.UserID)
	assert.Equal(t, fixed, first.CreatedAt)

	_, err = reg.Register(ctx, user("alice"))
	assert.ErrorIs(t, err, domain.ErrDuplicateSession)

	// The original session is untouched by the rejected attempt.
	got, err := reg.Lookup(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	count, err := reg.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryRegistry_ReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()

	alice, err := reg.Register(ctx, user("alice"))
	require.NoError(t, err)
	bob, err := reg.Register(ctx, user("bob"))
	require.NoError(t, err)

	released, err := reg.Release(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, released)
	assert.Equal(t, alice.ID, released.ID)

	released, err = reg.Release(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, released)

	_, err = reg.Lookup(ctx, alice.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// Only alice's entry was removed.
	got, err := reg.Lookup(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)
}

func TestMemoryRegistry_NewSessionAfterRelease(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()

	first, err := reg.Register(ctx, user("alice"))
	require.NoError(t, err)
	_, err = reg.Release(ctx, "alice")
	require.NoError(t, err)

	second, err := reg.Register(ctx, user("alice"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestMemoryRegistry_Unregister(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()

	s, err := reg.Register(ctx, user("alice"))
	require.NoError(t, err)

	require.NoError(t, reg.Unregister(ctx, s.ID))
	require.NoError(t, reg.Unregister(ctx, s.ID))

	_, err = reg.Register(ctx, user("alice"))
	assert.NoError(t, err, "username must be free again after unregister")
}

func TestMemoryRegistry_RegenerateCollidingID(t *testing.T) {
	ctx := context.Background()
	ids := []string{"same", "same", "other"}
	var i int
	reg := registry.NewMemoryRegistry(registry.WithIDGenerator(func() string {
		id := ids[i]
		i++
		return id
	}))

	a, err := reg.Register(ctx, user("alice"))
	require.NoError(t, err)
	b, err := reg.Register(ctx, user("bob"))
	require.NoError(t, err)

	assert.Equal(t, "same", a.ID)
	assert.Equal(t, "other", b.ID)
}

func TestMemoryRegistry_ConcurrentRegisterSameUser(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()

	const workers = 200
	var wins, conflicts atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := reg.Register(ctx, user("alice"))
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, domain.ErrDuplicateSession):
				conflicts.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, workers-1, conflicts.Load())
	assert.Equal(t, 1, countFor(reg.Sessions(), "alice"))
}

func TestMemoryRegistry_ConcurrentLoginLogoutChurn(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()

	const (
		workers   = 32
		rounds    = 200
		usernames = 4
	)
	var wg sync.WaitGroup
	var violations atomic.Int64

	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range rounds {
				name := fmt.Sprintf("user-%d", (w+i)%usernames)
				if i%3 == 0 {
					_, _ = reg.Release(ctx, name)
					continue
				}
				_, _ = reg.Register(ctx, user(name))
				if countFor(reg.Sessions(), name) > 1 {
					violations.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Zero(t, violations.Load())
	sessions := reg.Sessions()
	for u := range usernames {
		assert.LessOrEqual(t, countFor(sessions, fmt.Sprintf("user-%d", u)), 1)
	}
}

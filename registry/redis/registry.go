// Package redis implements a SessionRegistry shared by every instance that
// points at the same Redis deployment.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.pilab.hu/solosso/domain"
)

// Keys used per prefix. They share one hash tag so the scripts stay on a
// single slot under Redis Cluster.
//
//	{prefix}:users    HASH username -> session id
//	{prefix}:sessions HASH session id -> session JSON
const (
	usersSuffix    = ":users"
	sessionsSuffix = ":sessions"
)

// registerScript inserts the session only when the username is free.
// KEYS[1]=users KEYS[2]=sessions ARGV[1]=username ARGV[2]=session id ARGV[3]=blob
const registerScript = `
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 1 then
  return 0
end
if redis.call("HEXISTS", KEYS[2], ARGV[2]) == 1 then
  return -1
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
redis.call("HSET", KEYS[2], ARGV[2], ARGV[3])
return 1
`

// releaseScript removes the session owned by a username and returns its blob.
// KEYS[1]=users KEYS[2]=sessions ARGV[1]=username
const releaseScript = `
local sid = redis.call("HGET", KEYS[1], ARGV[1])
if not sid then
  return false
end
redis.call("HDEL", KEYS[1], ARGV[1])
local blob = redis.call("HGET", KEYS[2], sid)
redis.call("HDEL", KEYS[2], sid)
if not blob then
  return ""
end
return blob
`

// unregisterScript removes a session by id, and the username index entry
// only while it still points at that id.
// KEYS[1]=users KEYS[2]=sessions ARGV[1]=username ARGV[2]=session id
const unregisterScript = `
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
  redis.call("HDEL", KEYS[1], ARGV[1])
end
return redis.call("HDEL", KEYS[2], ARGV[2])
`

var (
	registerLua   = goredis.NewScript(registerScript)
	releaseLua    = goredis.NewScript(releaseScript)
	unregisterLua = goredis.NewScript(unregisterScript)
)

const maxIDAttempts = 3

var errIDCollision = errors.New("session id collision")

// Registry is a Redis-backed domain.SessionRegistry.
type Registry struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
	newID  func() string
}

// NewRegistry creates a registry storing its state under prefix.
func NewRegistry(client goredis.UniversalClient, prefix string) *Registry {
	if prefix == "" {
		prefix = "solosso"
	}
	return &Registry{
		client: client,
		prefix: "{" + prefix + "}",
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (r *Registry) usersKey() string    { return r.prefix + usersSuffix }
func (r *Registry) sessionsKey() string { return r.prefix + sessionsSuffix }

// Register implements domain.SessionRegistry.
func (r *Registry) Register(ctx context.Context, user domain.User) (*domain.Session, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		session := domain.NewSession(r.newID(), user, r.now().UTC())
		blob, err := json.Marshal(session)
		if err != nil {
			return nil, fmt.Errorf("failed to encode session: %w", err)
		}

		status, err := registerLua.Run(ctx, r.client,
			[]string{r.usersKey(), r.sessionsKey()},
			user.Username, session.ID, string(blob),
		).Int64()
		if err != nil {
			return nil, fmt.Errorf("failed to register session in Redis: %w", err)
		}

		switch status {
		case 1:
			return session, nil
		case 0:
			return nil, domain.ErrDuplicateSession
		}
		// -1: the generated id is taken, try another one.
	}
	return nil, errIDCollision
}

// Release implements domain.SessionRegistry.
func (r *Registry) Release(ctx context.Context, username string) (*domain.Session, error) {
	blob, err := releaseLua.Run(ctx, r.client,
		[]string{r.usersKey(), r.sessionsKey()},
		username,
	).Text()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to release session in Redis: %w", err)
	}
	if blob == "" {
		// Index pointed at a session whose record was already gone.
		return nil, nil
	}
	return decodeSession(blob)
}

// Unregister implements domain.SessionRegistry.
func (r *Registry) Unregister(ctx context.Context, sessionID string) error {
	session, err := r.Lookup(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	err = unregisterLua.Run(ctx, r.client,
		[]string{r.usersKey(), r.sessionsKey()},
		session.Username, sessionID,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to unregister session in Redis: %w", err)
	}
	return nil
}

// Lookup implements domain.SessionRegistry.
func (r *Registry) Lookup(ctx context.Context, sessionID string) (*domain.Session, error) {
	blob, err := r.client.HGet(ctx, r.sessionsKey(), sessionID).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session from Redis: %w", err)
	}
	return decodeSession(blob)
}

// Count implements domain.SessionRegistry.
func (r *Registry) Count(ctx context.Context) (int, error) {
	n, err := r.client.HLen(ctx, r.sessionsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions in Redis: %w", err)
	}
	return int(n), nil
}

func decodeSession(blob string) (*domain.Session, error) {
	var session domain.Session
	if err := json.Unmarshal([]byte(blob), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

var _ domain.SessionRegistry = (*Registry)(nil)

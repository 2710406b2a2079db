// Package registry keeps the set of active sessions and enforces that an
// account holds at most one of them.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.pilab.hu/solosso/domain"
)

// Option configures a MemoryRegistry.
type Option func(*MemoryRegistry)

// WithClock overrides the clock used to stamp new sessions.
func WithClock(now func() time.Time) Option {
	return func(r *MemoryRegistry) { r.now = now }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(newID func() string) Option {
	return func(r *MemoryRegistry) { r.newID = newID }
}

// MemoryRegistry is a process-local SessionRegistry.
//
// Sessions are keyed by username, with a secondary index by session id.
// A single lock covers both maps, so the duplicate check and the insert in
// Register happen as one step.
type MemoryRegistry struct {
	mu       sync.RWMutex
	byUser   map[string]string // username -> session id
	sessions map[string]*domain.Session

	now   func() time.Time
	newID func() string
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry(opts ...Option) *MemoryRegistry {
	r := &MemoryRegistry{
		byUser:   make(map[string]string),
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register implements domain.SessionRegistry.
func (r *MemoryRegistry) Register(_ context.Context, user domain.User) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUser[user.Username]; exists {
		return nil, domain.ErrDuplicateSession
	}

	id := r.newID()
	for _, taken := r.sessions[id]; taken; _, taken = r.sessions[id] {
		id = r.newID()
	}

	session := domain.NewSession(id, user, r.now().UTC())
	r.byUser[user.Username] = id
	r.sessions[id] = session

	copied := *session
	return &copied, nil
}

// Release implements domain.SessionRegistry.
func (r *MemoryRegistry) Release(_ context.Context, username string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byUser[username]
	if !ok {
		return nil, nil
	}
	session := r.sessions[id]
	delete(r.byUser, username)
	delete(r.sessions, id)
	return session, nil
}

// Unregister implements domain.SessionRegistry.
func (r *MemoryRegistry) Unregister(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(r.sessions, sessionID)
	if r.byUser[session.Username] == sessionID {
		delete(r.byUser, session.Username)
	}
	return nil
}

// Lookup implements domain.SessionRegistry.
func (r *MemoryRegistry) Lookup(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

// Count implements domain.SessionRegistry.
func (r *MemoryRegistry) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), nil
}

// Sessions returns a copy of every active session, in no particular order.
func (r *MemoryRegistry) Sessions() []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	return out
}

var _ domain.SessionRegistry = (*MemoryRegistry)(nil)

package domain

import (
	"context"
	"time"
)

// UserRepository is the user directory consumed by the authentication service.
type UserRepository interface {
	// GetUserByUsername returns ErrUserNotFound when no user has the name.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// UpdateLastConnected sets only the last-connected and updated-at times
	// of the user with the given id. It returns ErrUserNotFound for an
	// unknown id.
	UpdateLastConnected(ctx context.Context, userID string, at time.Time) error
	CreateUser(ctx context.Context, user *User) error
}

// SessionRegistry holds the active sessions. Implementations must keep at
// most one session per username under concurrent use.
type SessionRegistry interface {
	// Register atomically checks that the user has no active session and
	// inserts a new one with a freshly generated id. It returns
	// ErrDuplicateSession when a session already exists for the username.
	Register(ctx context.Context, user User) (*Session, error)
	// Release removes the session owned by username. It returns the removed
	// session, or nil when there was none.
	Release(ctx context.Context, username string) (*Session, error)
	// Unregister removes the session with the given id, if present.
	Unregister(ctx context.Context, sessionID string) error
	// Lookup returns ErrSessionNotFound when the id is not active.
	Lookup(ctx context.Context, sessionID string) (*Session, error)
	Count(ctx context.Context) (int, error)
}

package domain

import "time"

// Session represents one active login. At most one session exists per
// username at any time.
//
// A session is not bound to the lifetime of the token minted for it: the
// registry keeps it until an explicit logout, even after the token expires.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	User      User      `json:"user"` // Snapshot of the directory record at login time
	CreatedAt time.Time `json:"createdAt"`
}

// NewSession builds a session for the given user snapshot.
func NewSession(id string, user User, createdAt time.Time) *Session {
	return &Session{
		ID:        id,
		UserID:    user.ID,
		Username:  user.Username,
		User:      user,
		CreatedAt: createdAt,
	}
}

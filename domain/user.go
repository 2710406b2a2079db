package domain

import "time"

// User represents an account record held by the user directory.
type User struct {
	ID            string     `bson:"_id,omitempty"             json:"id"`
	Username      string     `bson:"username"                  json:"username"`
	Password      string     `bson:"password"                  json:"-"` // Stored secret, checked by a services.PasswordHasher
	Nickname      string     `bson:"nickname,omitempty"        json:"nickname"`
	LastConnected *time.Time `bson:"last_connected,omitempty"  json:"lastConnected,omitempty"`
	CreatedAt     time.Time  `bson:"created_at"                json:"createdAt"`
	UpdatedAt     time.Time  `bson:"updated_at"                json:"updatedAt"`
}

// Snapshot returns a copy of the user that is safe to keep after the caller
// mutates the original. The stored secret is not carried over.
func (u *User) Snapshot() User {
	snap := *u
	snap.Password = ""
	if u.LastConnected != nil {
		t := *u.LastConnected
		snap.LastConnected = &t
	}
	return snap
}

package api

import "time"

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	ID string `json:"id"` // Username
	PW string `json:"pw"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
}

// LogoutRequest is the body of POST /auth/logout.
type LogoutRequest struct {
	ID string `json:"id"`
}

// SessionResponse describes the session behind a bearer token.
type SessionResponse struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.pilab.hu/solosso/api"
	"go.pilab.hu/solosso/cmd/ssoctl/config"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is the server refusing a second session.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// AuthClient talks to the /auth endpoints of a solosso server.
type AuthClient struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewAuthClient returns a client for the context's server.
func NewAuthClient(cfg *config.Context) (*AuthClient, error) {
	if cfg == nil || cfg.ServerEndpoint == "" {
		return nil, fmt.Errorf("invalid context or server endpoint for auth client")
	}
	return &AuthClient{
		endpoint:   cfg.ServerEndpoint,
		token:      cfg.UserAuthToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Login opens a session for username.
func (c *AuthClient) Login(ctx context.Context, username, password string) (*api.LoginResponse, error) {
	var res api.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", api.LoginRequest{ID: username, PW: password}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout releases the session of username.
func (c *AuthClient) Logout(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", api.LogoutRequest{ID: username}, nil)
}

// Session describes the session behind the client's token.
func (c *AuthClient) Session(ctx context.Context) (*api.SessionResponse, error) {
	if c.token == "" {
		return nil, errors.New("not logged in. Use 'ssoctl login'")
	}
	var res api.SessionResponse
	if err := c.do(ctx, http.MethodGet, "/auth/session", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *AuthClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

//nolint:varnamelen
package ssoecho

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"go.pilab.hu/solosso/api"
	"go.pilab.hu/solosso/domain"
	"go.pilab.hu/solosso/middleware"
	"go.pilab.hu/solosso/services"
)

// Authenticator is the part of the auth service the HTTP layer drives.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, username string) error
	middleware.SessionAuthenticator
}

// AuthAPI serves the login protocol over HTTP.
type AuthAPI struct {
	service Authenticator
}

// NewAuthAPI initializes the auth API.
func NewAuthAPI(service Authenticator) *AuthAPI {
	return &AuthAPI{service: service}
}

// RegisterRoutes registers the auth routes.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/auth")
	g.POST("/login", a.LoginHandler)
	g.POST("/logout", a.LogoutHandler)
	g.GET("/session", a.SessionHandler, middleware.RequireSession(a.service))
}

// LoginHandler opens a session for {id, pw} and answers with its token.
func (a *AuthAPI) LoginHandler(c echo.Context) error {
	var req api.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, api.ErrorResponse{Message: "Malformed request body."})
	}

	res, err := a.service.Login(c.Request().Context(), req.ID, req.PW)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, api.LoginResponse{
		Token:    res.Token,
		UserID:   res.UserID,
		Nickname: res.Nickname,
	})
}

// LogoutHandler drops the session held by {id}. Unknown or already logged
// out accounts are answered the same way.
func (a *AuthAPI) LogoutHandler(c echo.Context) error {
	var req api.LogoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, api.ErrorResponse{Message: "Malformed request body."})
	}

	if err := a.service.Logout(c.Request().Context(), req.ID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, struct{}{})
}

// SessionHandler describes the session behind the bearer token.
func (a *AuthAPI) SessionHandler(c echo.Context) error {
	active, ok := middleware.ActiveSessionFrom(c)
	if !ok {
		return writeError(c, domain.ErrSessionNotActive)
	}

	s := active.Session
	return c.JSON(http.StatusOK, api.SessionResponse{
		UserID:    s.UserID,
		Username:  s.Username,
		Nickname:  s.User.Nickname,
		SessionID: s.ID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: active.ExpiresAt,
	})
}

// writeError maps service errors to status codes. Internal details never
// reach the client.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, api.ErrorResponse{Message: "Invalid username or password."})
	case errors.Is(err, domain.ErrDuplicateSession):
		return c.JSON(http.StatusConflict, api.ErrorResponse{Message: "This account is already logged in."})
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrSessionNotActive):
		return c.JSON(http.StatusUnauthorized, api.ErrorResponse{Message: "Session is not active."})
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
		return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Message: "Internal server error."})
	}
}

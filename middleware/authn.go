package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"go.pilab.hu/solosso/api"
	"go.pilab.hu/solosso/domain"
	"go.pilab.hu/solosso/services"
)

// ActiveSessionKey is the echo context key holding the *services.ActiveSession.
const ActiveSessionKey = "solosso.active-session"

// SessionAuthenticator resolves a bearer token to its active session.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, raw string) (*services.ActiveSession, error)
}

// RequireSession rejects requests whose bearer token does not belong to an
// active session. Accepted requests carry the session in both the echo
// context and the request context.
func RequireSession(auth SessionAuthenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return c.JSON(http.StatusUnauthorized, api.ErrorResponse{Message: "Missing bearer token."})
			}

			ctx := c.Request().Context()
			active, err := auth.Authenticate(ctx, raw)
			if err != nil {
				log.Debug().Err(err).Str("path", c.Path()).Msg("RequireSession: rejected")
				return c.JSON(http.StatusUnauthorized, api.ErrorResponse{Message: "Session is not active."})
			}

			c.Set(ActiveSessionKey, active)
			c.SetRequest(c.Request().WithContext(domain.ContextWithSession(ctx, active.Session)))
			return next(c)
		}
	}
}

// ActiveSessionFrom returns the session stored by RequireSession.
func ActiveSessionFrom(c echo.Context) (*services.ActiveSession, bool) {
	active, ok := c.Get(ActiveSessionKey).(*services.ActiveSession)
	return active, ok && active != nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	raw := strings.TrimSpace(parts[1])
	return raw, raw != ""
}

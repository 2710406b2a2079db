package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.pilab.hu/solosso/domain"
	"go.pilab.hu/solosso/services"
)

type MockSessionAuthenticator struct {
	mock.Mock
}

func (m *MockSessionAuthenticator) Authenticate(ctx context.Context, raw string) (*services.ActiveSession, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ActiveSession), args.Error(1)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}

func TestRequireSession(t *testing.T) {
	session := &domain.Session{ID: "s1", UserID: "u1", Username: "alice"}
	auth := new(MockSessionAuthenticator)
	auth.On("Authenticate", mock.Anything, "good").
		Return(&services.ActiveSession{Session: session, ExpiresAt: time.Now().Add(time.Hour)}, nil)
	auth.On("Authenticate", mock.Anything, "stale").Return(nil, domain.ErrSessionNotActive)

	e := echo.New()
	var seen *domain.Session
	handler := RequireSession(auth)(func(c echo.Context) error {
		active, ok := ActiveSessionFrom(c)
		require.True(t, ok)
		fromCtx, ok := domain.SessionFromContext(c.Request().Context())
		require.True(t, ok)
		assert.Same(t, active.Session, fromCtx)
		seen = active.Session
		return c.NoContent(http.StatusNoContent)
	})

	serve := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
		if header != "" {
			req.Header.Set(echo.HeaderAuthorization, header)
		}
		rec := httptest.NewRecorder()
		require.NoError(t, handler(e.NewContext(req, rec)))
		return rec
	}

	rec := serve("Bearer good")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "s1", seen.ID)

	rec = serve("Bearer stale")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Session is not active."}`, rec.Body.String())

	rec = serve("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	auth.AssertNumberOfCalls(t, "Authenticate", 2)
}

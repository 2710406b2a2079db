package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.pilab.hu/solosso/config"
	"go.pilab.hu/solosso/log"
)

type pingAPI struct{}

func (pingAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	e.GET("/boom", func(echo.Context) error { panic("boom") })
	e.GET("/teapot", func(echo.Context) error { return echo.NewHTTPError(http.StatusTeapot) })
}

func newTestRouter(t *testing.T) *echo.Echo {
	t.Helper()
	cfg := &config.ServerConfig{HTTPPort: "0", OtelServiceName: "solosso-test"}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "solosso_test_total", Help: "test"}))
	return NewRouter(cfg, log.NewNop(), reg, nil, pingAPI{}, nil)
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter(t *testing.T) {
	e := newTestRouter(t)

	rec := get(e, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(e, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "solosso_test_total")

	rec = get(e, "/ping")
	assert.Equal(t, "pong", rec.Body.String())

	assert.Equal(t, http.StatusInternalServerError, get(e, "/boom").Code)
	assert.Equal(t, http.StatusTeapot, get(e, "/teapot").Code)
	assert.Equal(t, http.StatusNotFound, get(e, "/missing").Code)
}

func TestHealthz_ReadinessCheck(t *testing.T) {
	cfg := &config.ServerConfig{HTTPPort: "0", OtelServiceName: "solosso-test"}
	var failure error
	var deadlineSet bool
	e := NewRouter(cfg, log.NewNop(), nil, func(ctx context.Context) error {
		_, deadlineSet = ctx.Deadline()
		return failure
	})

	rec := get(e, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.True(t, deadlineSet)

	failure = errors.New("mongodb: server selection timeout")
	rec = get(e, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())

	// Without a gatherer there is no metrics endpoint.
	assert.Equal(t, http.StatusNotFound, get(e, "/metrics").Code)
}

func TestNewHTTPServer(t *testing.T) {
	srv := NewHTTPServer(&config.ServerConfig{HTTPPort: "8080"}, http.NotFoundHandler())
	assert.Equal(t, ":8080", srv.Addr)
}

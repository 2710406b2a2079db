package cmd

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ssoecho "go.pilab.hu/solosso/api/echo"
	"go.pilab.hu/solosso/cache"
	"go.pilab.hu/solosso/cmd/ssoctl/config"
	"go.pilab.hu/solosso/domain"
	"go.pilab.hu/solosso/internal/audit"
	"go.pilab.hu/solosso/internal/auth"
	"go.pilab.hu/solosso/log"
	"go.pilab.hu/solosso/registry"
	"go.pilab.hu/solosso/services"
	"go.pilab.hu/solosso/token"
)

type staticDirectory map[string]domain.User

func (d staticDirectory) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	u, ok := d[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (staticDirectory) UpdateLastConnected(context.Context, string, time.Time) error { return nil }
func (staticDirectory) CreateUser(context.Context, *domain.User) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *registry.MemoryRegistry) {
	t.Helper()
	audit.SetOutput(io.Discard)

	issuer, err := token.NewIssuer(token.Config{SecretKey: []byte("test-secret"), Issuer: "solosso"})
	require.NoError(t, err)
	tokens := cache.NewMemoryTokenStore(time.Minute)
	t.Cleanup(func() { _ = tokens.Close() })

	reg := registry.NewMemoryRegistry()
	users := staticDirectory{"alice": {ID: "user-alice", Username: "alice", Password: "secret", Nickname: "Al"}}
	svc := services.NewAuthService(users, reg, issuer, auth.PlainPasswordHasher{}, tokens, log.NewNop())

	e := echo.New()
	ssoecho.NewAuthAPI(svc).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, reg
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestLoginWhoamiLogout(t *testing.T) {
	srv, reg := newTestServer(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { cfgFile = "" })

	require.NoError(t, run(t, "--config", path, "config", "set-context", "local", "--server", srv.URL))
	require.NoError(t, run(t, "--config", path, "login", "-u", "alice", "-p", "secret"))

	saved, err := config.Load(path)
	require.NoError(t, err)
	current, err := saved.Current()
	require.NoError(t, err)
	assert.Equal(t, "alice", current.Username)
	assert.NotEmpty(t, current.UserAuthToken)

	count, err := reg.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, run(t, "--config", path, "whoami"))

	// A second login from the same context is refused locally.
	assert.Error(t, run(t, "--config", path, "login", "-u", "alice", "-p", "secret"))

	require.NoError(t, run(t, "--config", path, "logout"))
	count, err = reg.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	saved, err = config.Load(path)
	require.NoError(t, err)
	current, err = saved.Current()
	require.NoError(t, err)
	assert.Empty(t, current.UserAuthToken)

	assert.Error(t, run(t, "--config", path, "whoami"))
}

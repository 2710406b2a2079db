package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.pilab.hu/solosso/cache"
	"go.pilab.hu/solosso/domain"
	"go.pilab.hu/solosso/internal/audit"
	"go.pilab.hu/solosso/internal/metrics"
	"go.pilab.hu/solosso/log"
	"go.pilab.hu/solosso/tracing"
)

const (
	auditService = "AuthService"

	DefaultAccessTokenTTL   = time.Hour
	DefaultDirectoryTimeout = 3 * time.Second
)

// LoginResult is returned to the caller after a successful login.
type LoginResult struct {
	Token     string
	UserID    string
	Nickname  string
	SessionID string
	ExpiresAt time.Time
}

// ActiveSession is a verified bearer token together with the live session it
// was minted for.
type ActiveSession struct {
	Session   *domain.Session
	ExpiresAt time.Time
}

// AuthServiceOption configures an AuthService.
type AuthServiceOption func(*AuthService)

// WithAccessTokenTTL sets the lifetime of minted tokens.
func WithAccessTokenTTL(ttl time.Duration) AuthServiceOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithDirectoryTimeout bounds every call made to the user directory.
func WithDirectoryTimeout(timeout time.Duration) AuthServiceOption {
	return func(s *AuthService) {
		if timeout > 0 {
			s.directoryTimeout = timeout
		}
	}
}

// WithServiceClock overrides the clock used for LastConnected.
func WithServiceClock(now func() time.Time) AuthServiceOption {
	return func(s *AuthService) { s.now = now }
}

// AuthService runs the login and logout protocol on top of the session
// registry.
type AuthService struct {
	users    domain.UserRepository
	registry domain.SessionRegistry
	issuer   TokenIssuer
	hasher   PasswordHasher
	tokens   cache.TokenStore
	logger   log.Logger

	tokenTTL         time.Duration
	directoryTimeout time.Duration
	now              func() time.Time
}

// NewAuthService creates a new AuthService. tokens may be nil, in which case
// every Authenticate call parses the token.
func NewAuthService(
	users domain.UserRepository,
	registry domain.SessionRegistry,
	issuer TokenIssuer,
	hasher PasswordHasher,
	tokens cache.TokenStore,
	logger log.Logger,
	opts ...AuthServiceOption,
) *AuthService {
	s := &AuthService{
		users:            users,
		registry:         registry,
		issuer:           issuer,
		hasher:           hasher,
		tokens:           tokens,
		logger:           logger,
		tokenTTL:         DefaultAccessTokenTTL,
		directoryTimeout: DefaultDirectoryTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies the credentials and opens the only session the account may
// hold. It returns domain.ErrInvalidCredentials for an unknown user or a
// wrong password and domain.ErrDuplicateSession while a session is active.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AuthService.Login")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	s.logger.Debug(ctx, "Login attempt", map[string]interface{}{"username": username})

	if username == "" || password == "" {
		s.rejectLogin(ctx, username, "Empty credentials", domain.ErrInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.lookupUser(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.rejectLogin(ctx, username, "User not found", err)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		s.logger.Error(ctx, "Login: directory lookup failed", err, map[string]interface{}{"username": username})
		audit.Log(auditService, "Login", username, "", "Directory lookup failed", false, err)
		return nil, err
	}

	if err := s.hasher.Verify(user.Password, password); err != nil {
		s.rejectLogin(ctx, username, "Incorrect password", err)
		return nil, domain.ErrInvalidCredentials
	}

	session, err := s.registry.Register(ctx, user.Snapshot())
	if errors.Is(err, domain.ErrDuplicateSession) {
		s.logger.Info(ctx, "Login: account already has an active session", map[string]interface{}{"username": username})
		audit.Log(auditService, "Login", username, user.ID, "Duplicate session", false, err)
		metrics.LoginConflictTotal.Inc()
		return nil, err
	}
	if err != nil {
		s.logger.Error(ctx, "Login: failed to register session", err, map[string]interface{}{"username": username})
		audit.Log(auditService, "Login", username, user.ID, "Failed to register session", false, err)
		return nil, fmt.Errorf("failed to register session: %w", err)
	}

	s.touchLastConnected(ctx, user)

	raw, err := s.issuer.Mint(user.ID, session.ID, s.tokenTTL)
	if err != nil {
		// The token never left the server, so the session must not keep the
		// account locked.
		if rbErr := s.registry.Unregister(ctx, session.ID); rbErr != nil {
			s.logger.Error(ctx, "Login: failed to roll back session", rbErr, map[string]interface{}{
				"username":  username,
				"sessionID": session.ID,
			})
		}
		s.refreshActiveSessions(ctx)
		s.logger.Error(ctx, "Login: failed to mint token", err, map[string]interface{}{"username": username})
		audit.Log(auditService, "Login", username, session.ID, "Failed to mint token", false, err)
		return nil, fmt.Errorf("could not mint token: %w", err)
	}

	metrics.LoginSuccessTotal.Inc()
	s.refreshActiveSessions(ctx)
	s.logger.Info(ctx, "Login successful", map[string]interface{}{
		"username":  username,
		"userID":    user.ID,
		"sessionID": session.ID,
	})
	audit.Log(auditService, "Login", username, session.ID, "Session created", true, nil)

	return &LoginResult{
		Token:     raw,
		UserID:    user.ID,
		Nickname:  user.Nickname,
		SessionID: session.ID,
		ExpiresAt: session.CreatedAt.Add(s.tokenTTL),
	}, nil
}

// Logout drops the session held by username. Logging out an account without
// a session succeeds.
func (s *AuthService) Logout(ctx context.Context, username string) error {
	ctx, span := tracing.Tracer.Start(ctx, "AuthService.Logout")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	released, err := s.registry.Release(ctx, username)
	if err != nil {
		s.logger.Error(ctx, "Logout: failed to release session", err, map[string]interface{}{"username": username})
		audit.Log(auditService, "Logout", username, "", "Failed to release session", false, err)
		return fmt.Errorf("failed to release session: %w", err)
	}
	metrics.LogoutTotal.Inc()
	if released == nil {
		s.logger.Debug(ctx, "Logout: no active session", map[string]interface{}{"username": username})
		audit.Log(auditService, "Logout", username, "", "No active session", true, nil)
		return nil
	}

	s.refreshActiveSessions(ctx)
	s.logger.Info(ctx, "Logout successful", map[string]interface{}{
		"username":  username,
		"sessionID": released.ID,
	})
	audit.Log(auditService, "Logout", username, released.ID, "Session released", true, nil)
	return nil
}

// Authenticate resolves a bearer token to its active session. It returns
// domain.ErrInvalidToken when the token does not verify and
// domain.ErrSessionNotActive when its session has been released.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*ActiveSession, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AuthService.Authenticate")
	defer span.End()

	entry, err := s.verifyToken(ctx, raw)
	if err != nil {
		return nil, err
	}

	session, err := s.registry.Lookup(ctx, entry.SessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrSessionNotActive
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if session.UserID != entry.UserID {
		s.logger.Warn(ctx, "Authenticate: token subject does not own the session", map[string]interface{}{
			"sessionID": entry.SessionID,
			"subject":   entry.UserID,
		})
		return nil, domain.ErrSessionNotActive
	}

	return &ActiveSession{Session: session, ExpiresAt: entry.ExpiresAt}, nil
}

func (s *AuthService) verifyToken(ctx context.Context, raw string) (*cache.TokenEntry, error) {
	if raw == "" {
		return nil, domain.ErrInvalidToken
	}
	if s.tokens != nil {
		if entry, err := s.tokens.Get(ctx, raw); err == nil {
			return entry, nil
		}
	}

	claims, err := s.issuer.Parse(raw)
	if err != nil {
		s.logger.Debug(ctx, "Authenticate: token rejected", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	entry := &cache.TokenEntry{
		SessionID: claims.SID,
		UserID:    claims.Subject,
	}
	if claims.ExpiresAt != nil {
		entry.ExpiresAt = claims.ExpiresAt.Time
	}
	if s.tokens != nil {
		if err := s.tokens.Set(ctx, raw, entry); err != nil {
			s.logger.Warn(ctx, "Authenticate: failed to cache token", map[string]interface{}{"error": err.Error()})
		}
	}
	return entry, nil
}

func (s *AuthService) lookupUser(ctx context.Context, username string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.directoryTimeout)
	defer cancel()

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return user, nil
}

// touchLastConnected records the login time on the directory record. A
// failure is only logged; the session stays.
func (s *AuthService) touchLastConnected(ctx context.Context, user *domain.User) {
	ctx, cancel := context.WithTimeout(ctx, s.directoryTimeout)
	defer cancel()

	now := s.now().UTC()
	if err := s.users.UpdateLastConnected(ctx, user.ID, now); err != nil {
		metrics.DirectoryUpdateFailureTotal.Inc()
		s.logger.Warn(ctx, "Login: failed to update user LastConnected", map[string]interface{}{
			"userID": user.ID,
			"error":  err.Error(),
		})
	}
}

func (s *AuthService) rejectLogin(ctx context.Context, username, details string, err error) {
	s.logger.Warn(ctx, "Login rejected", map[string]interface{}{"username": username, "reason": details})
	audit.Log(auditService, "Login", username, "", details, false, err)
	metrics.LoginFailureTotal.Inc()
}

func (s *AuthService) refreshActiveSessions(ctx context.Context) {
	n, err := s.registry.Count(ctx)
	if err != nil {
		s.logger.Debug(ctx, "Failed to count active sessions", map[string]interface{}{"error": err.Error()})
		return
	}
	metrics.ActiveSessionsGauge.Set(float64(n))
}

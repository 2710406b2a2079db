package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	ssoecho "go.pilab.hu/solosso/api/echo"
	"go.pilab.hu/solosso/cache"
	"go.pilab.hu/solosso/config"
	"go.pilab.hu/solosso/domain"
	"go.pilab.hu/solosso/internal/auth"
	"go.pilab.hu/solosso/internal/metrics"
	"go.pilab.hu/solosso/internal/server"
	"go.pilab.hu/solosso/log"
	"go.pilab.hu/solosso/mongodb"
	"go.pilab.hu/solosso/registry"
	boltregistry "go.pilab.hu/solosso/registry/bolt"
	redisregistry "go.pilab.hu/solosso/registry/redis"
	"go.pilab.hu/solosso/services"
	"go.pilab.hu/solosso/token"
	"go.pilab.hu/solosso/tracing"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
		fallback := zerolog.New(os.Stdout).With().Timestamp().Logger()
		fallback.Warn().
			Str("configured_log_level", cfg.LogLevel).
			Str("fallback_log_level", logLevel.String()).
			Err(parseErr).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	zerolog.SetGlobalLevel(logLevel)
	appLogger := log.NewZerologAdapter(logLevel, cfg.LogPretty)

	ctx := context.Background()
	appLogger.Info(ctx, "Starting solosso server...", map[string]interface{}{
		"http_port":        cfg.HTTPPort,
		"mongo_db_name":    cfg.MongoDBName,
		"registry_backend": cfg.RegistryBackend,
		"password_scheme":  cfg.PasswordScheme,
		"log_level":        cfg.LogLevel,
		"otel_service":     cfg.OtelServiceName,
	})

	tracerProvider, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.InitCustomMetrics(promRegistry)

	// --- Initialize Dependencies ---
	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", err)
	}
	userRepo, err := mongodb.NewUserRepository(ctx, mongodb.GetDB())
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize UserRepository", err)
	}

	sessionRegistry, closeRegistry, err := newSessionRegistry(ctx, cfg)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize session registry", err)
	}

	passwordHasher, err := auth.NewPasswordHasher(cfg.PasswordScheme)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize password hasher", err)
	}

	issuer, err := token.NewIssuer(token.Config{
		SecretKey: []byte(cfg.JWTSecretKey),
		Issuer:    cfg.JWTIssuer,
		Leeway:    5 * time.Second,
	})
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize token issuer", err)
	}

	tokenCache := cache.NewMemoryTokenStore(cfg.TokenCacheTTL())

	authService := services.NewAuthService(
		userRepo, sessionRegistry, issuer, passwordHasher, tokenCache, appLogger,
		services.WithAccessTokenTTL(cfg.AccessTokenTTL()),
		services.WithDirectoryTimeout(cfg.DirectoryTimeout()),
	)
	// --- End Dependency Initialization ---

	router := server.NewRouter(cfg, appLogger, promRegistry, readinessCheck(sessionRegistry), ssoecho.NewAuthAPI(authService))
	httpServer := server.NewHTTPServer(cfg, router)
	go func() {
		appLogger.Info(ctx, fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(ctx, "Failed to start HTTP server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err)
	}

	_ = tokenCache.Close()
	closeRegistry()

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err)
	}

	mongodb.CloseMongoDB(shutdownCtx)

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}

// readinessCheck reports the server unhealthy while the user directory or the
// session registry cannot be reached.
func readinessCheck(sessions domain.SessionRegistry) server.ReadinessCheck {
	return func(ctx context.Context) error {
		if err := mongodb.Ping(ctx); err != nil {
			return fmt.Errorf("mongodb: %w", err)
		}
		if _, err := sessions.Count(ctx); err != nil {
			return fmt.Errorf("session registry: %w", err)
		}
		return nil
	}
}

// newSessionRegistry builds the registry selected by REGISTRY_BACKEND. The
// returned func releases its resources.
func newSessionRegistry(ctx context.Context, cfg *config.ServerConfig) (domain.SessionRegistry, func(), error) {
	switch cfg.RegistryBackend {
	case config.RegistryRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
		}
		return redisregistry.NewRegistry(client, cfg.RedisKeyPrefix), func() { _ = client.Close() }, nil
	case config.RegistryBolt:
		reg, err := boltregistry.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return reg, func() { _ = reg.Close() }, nil
	default:
		return registry.NewMemoryRegistry(), func() {}, nil
	}
}

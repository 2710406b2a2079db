package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Registry backends.
const (
	RegistryMemory = "memory"
	RegistryRedis  = "redis"
	RegistryBolt   = "bolt"
)

// Password schemes understood by the credential verifier.
const (
	PasswordPlain  = "plain"
	PasswordBcrypt = "bcrypt"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling; keys double as environment variable names.
type ServerConfig struct {
	HTTPPort        string `mapstructure:"HTTP_PORT"`
	MongoURI        string `mapstructure:"MONGO_URI"`
	MongoDBName     string `mapstructure:"MONGO_DB_NAME"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	JWTSecretKey       string `mapstructure:"JWT_SECRET_KEY"`
	JWTIssuer          string `mapstructure:"JWT_ISSUER"`
	AccessTokenTTLMin  int    `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	TokenCacheTTLSec   int    `mapstructure:"TOKEN_CACHE_TTL_SEC"`
	DirectoryTimeoutMS int    `mapstructure:"DIRECTORY_TIMEOUT_MS"`
	PasswordScheme     string `mapstructure:"PASSWORD_SCHEME"`

	RegistryBackend string `mapstructure:"REGISTRY_BACKEND"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int    `mapstructure:"REDIS_DB"`
	RedisKeyPrefix  string `mapstructure:"REDIS_KEY_PREFIX"`
	BoltPath        string `mapstructure:"BOLT_PATH"`
}

// AccessTokenTTL is the lifetime of minted access tokens.
func (c *ServerConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMin) * time.Minute
}

// TokenCacheTTL bounds how long a verified token is kept in the token cache.
func (c *ServerConfig) TokenCacheTTL() time.Duration {
	return time.Duration(c.TokenCacheTTLSec) * time.Second
}

// DirectoryTimeout bounds every call into the user directory.
func (c *ServerConfig) DirectoryTimeout() time.Duration {
	return time.Duration(c.DirectoryTimeoutMS) * time.Millisecond
}

// Validate reports the first configuration value that cannot be served.
func (c *ServerConfig) Validate() error {
	if c.AccessTokenTTLMin <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL_MIN must be positive, got %d", c.AccessTokenTTLMin)
	}
	if c.TokenCacheTTLSec <= 0 {
		return fmt.Errorf("TOKEN_CACHE_TTL_SEC must be positive, got %d", c.TokenCacheTTLSec)
	}
	if c.DirectoryTimeoutMS <= 0 {
		return fmt.Errorf("DIRECTORY_TIMEOUT_MS must be positive, got %d", c.DirectoryTimeoutMS)
	}
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return errors.New("JWT_SECRET_KEY must not be empty")
	}
	switch c.RegistryBackend {
	case RegistryMemory:
	case RegistryRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis registry backend")
		}
	case RegistryBolt:
		if c.BoltPath == "" {
			return errors.New("BOLT_PATH is required for the bolt registry backend")
		}
	default:
		return fmt.Errorf("unknown REGISTRY_BACKEND %q", c.RegistryBackend)
	}
	switch c.PasswordScheme {
	case PasswordPlain, PasswordBcrypt:
	default:
		return fmt.Errorf("unknown PASSWORD_SCHEME %q", c.PasswordScheme)
	}
	return nil
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/solosso/")
	v.AddConfigPath("$HOME/.solosso")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "solosso")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "solosso")
	v.SetDefault("JWT_SECRET_KEY", "a_very_secret_jwt_key_change_me") // CHANGE IN PRODUCTION
	v.SetDefault("JWT_ISSUER", "solosso")
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 60)
	v.SetDefault("TOKEN_CACHE_TTL_SEC", 60)
	v.SetDefault("DIRECTORY_TIMEOUT_MS", 3000)
	v.SetDefault("PASSWORD_SCHEME", PasswordPlain)
	v.SetDefault("REGISTRY_BACKEND", RegistryMemory)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "solosso")
	v.SetDefault("BOLT_PATH", "/var/lib/solosso/registry.db")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, defaults and env vars apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

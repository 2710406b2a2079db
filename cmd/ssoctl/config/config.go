package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	AppName        = "ssoctl"
	ConfigFileName = "config"
	ConfigFileType = "yaml"
)

// ErrNoCurrentContext is returned when no context has been selected.
var ErrNoCurrentContext = errors.New("no current context set. Use 'ssoctl config set-context <name> --server <endpoint>'")

// Context represents a single CLI context (server endpoint and auth info).
type Context struct {
	Name           string `mapstructure:"name"            yaml:"name"`
	ServerEndpoint string `mapstructure:"server_endpoint" yaml:"server_endpoint"`
	Username       string `mapstructure:"username"        yaml:"username,omitempty"`
	UserAuthToken  string `mapstructure:"user_auth_token" yaml:"user_auth_token,omitempty"` // Token obtained via 'ssoctl login'
}

// CLIConfig holds the overall CLI configuration.
type CLIConfig struct {
	CurrentContext string              `mapstructure:"current_context" yaml:"current_context"`
	Contexts       map[string]*Context `mapstructure:"contexts"        yaml:"contexts"`
}

// DefaultPath returns $HOME/.ssoctl/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, "."+AppName, ConfigFileName+"."+ConfigFileType), nil
}

// Load reads the CLI configuration at path. A missing file yields an empty
// configuration.
func Load(path string) (*CLIConfig, error) {
	cfg := &CLIConfig{Contexts: make(map[string]*Context)}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(ConfigFileType)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, c := range cfg.Contexts {
		if c.Name == "" {
			c.Name = name
		}
	}
	return cfg, nil
}

// Save writes the configuration to path. The file holds tokens, so it is
// only readable by the owner.
func (c *CLIConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("failed to save config to %s: %w", path, err)
	}
	return nil
}

// Current returns the selected context.
func (c *CLIConfig) Current() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, ErrNoCurrentContext
	}
	ctx, ok := c.Contexts[c.CurrentContext]
	if !ok {
		return nil, fmt.Errorf("current context '%s' not found in configuration", c.CurrentContext)
	}
	return ctx, nil
}

// SetContext creates or updates a context and makes it current. Names are
// case-insensitive because viper folds map keys.
func (c *CLIConfig) SetContext(name, endpoint string) *Context {
	name = strings.ToLower(name)
	endpoint = strings.TrimRight(endpoint, "/")
	ctx, ok := c.Contexts[name]
	if !ok {
		ctx = &Context{Name: name}
		c.Contexts[name] = ctx
	}
	if ctx.ServerEndpoint != endpoint {
		// Tokens are only valid for the server that issued them.
		ctx.UserAuthToken = ""
		ctx.Username = ""
	}
	ctx.ServerEndpoint = endpoint
	c.CurrentContext = name
	return ctx
}

// UseContext selects an existing context.
func (c *CLIConfig) UseContext(name string) error {
	name = strings.ToLower(name)
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context '%s' not found", name)
	}
	c.CurrentContext = name
	return nil
}

// Package config provides configuration management for the smashrank server.
// It loads a YAML configuration file, applies SMASHRANK_* environment variable
// overrides, and validates the result before the server starts.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MattMyers204453/smashrank-api/pkg/elo"
)

// Error types for configuration validation
var (
	ErrInvalidServerConfig = errors.New("invalid server configuration")
	ErrInvalidAuthConfig   = errors.New("invalid auth configuration")
	ErrInvalidMatchConfig  = errors.New("invalid match configuration")
	ErrInvalidLogConfig    = errors.New("invalid log configuration")
	ErrConfigNotFound      = errors.New("configuration file not found")
	ErrConfigParseError    = errors.New("failed to parse configuration file")
)

// Config is the top-level server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Pool     PoolConfig     `yaml:"pool" json:"pool"`
	Auth     AuthConfig     `yaml:"auth" json:"auth"`
	Match    MatchConfig    `yaml:"match" json:"match"`
	Elo      elo.Config     `yaml:"elo" json:"elo"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Seed     SeedConfig     `yaml:"seed" json:"seed"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr    string `yaml:"addr" json:"addr"`         // Listen address (default :8080)
	DevAuth bool   `yaml:"dev_auth" json:"dev_auth"` // Enable the credential-free dev login endpoint
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"` // Database file path, or ":memory:"
}

// PoolConfig holds live-pool index settings.
type PoolConfig struct {
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"` // Redis address; empty selects the in-memory index
}

// AuthConfig holds token issuance settings.
type AuthConfig struct {
	JWTSecret                  string `yaml:"jwt_secret" json:"jwt_secret"`                                       // HMAC signing secret (required)
	AccessTokenExpirationMs    int64  `yaml:"access_token_expiration_ms" json:"access_token_expiration_ms"`      // Access token lifetime (default 1h)
	RefreshTokenExpirationDays int    `yaml:"refresh_token_expiration_days" json:"refresh_token_expiration_days"` // Refresh token lifetime (default 30)
}

// AccessTokenTTL returns the access token lifetime as a duration.
func (c AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpirationMs) * time.Millisecond
}

// RefreshTokenTTL returns the refresh token lifetime as a duration.
func (c AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpirationDays) * 24 * time.Hour
}

// MatchConfig holds lifecycle coordinator timing settings.
type MatchConfig struct {
	ConfirmWindowSeconds int   `yaml:"confirm_window_seconds" json:"confirm_window_seconds"` // Recognized; pending reports do not expire
	RematchWindowSeconds int   `yaml:"rematch_window_seconds" json:"rematch_window_seconds"` // Rematch offer expiry (default 20)
	LockTimeoutMs        int64 `yaml:"lock_timeout_ms" json:"lock_timeout_ms"`               // Rating row lock timeout (default 5000)
}

// RematchWindow returns the rematch offer expiry as a duration.
func (c MatchConfig) RematchWindow() time.Duration {
	return time.Duration(c.RematchWindowSeconds) * time.Second
}

// LockTimeout returns the rating row lock timeout as a duration.
func (c MatchConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" json:"level"` // debug, info, warn, or error
}

// SlogLevel maps the configured level name to a slog level.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SeedConfig controls the bootstrap data seeder.
type SeedConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// DefaultConfig returns a configuration with sensible defaults.
// The JWT secret has no default and must be supplied.
func DefaultConfig() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "smashrank.db"},
		Pool:     PoolConfig{},
		Auth: AuthConfig{
			AccessTokenExpirationMs:    3600000,
			RefreshTokenExpirationDays: 30,
		},
		Match: MatchConfig{
			ConfirmWindowSeconds: 20,
			RematchWindowSeconds: 20,
			LockTimeoutMs:        5000,
		},
		Elo:  elo.DefaultConfig(),
		Log:  LogConfig{Level: "info"},
		Seed: SeedConfig{Enabled: true},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("%w: server addr is required", ErrInvalidServerConfig)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidServerConfig)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("%w: jwt_secret is required (set SMASHRANK_JWT_SECRET)", ErrInvalidAuthConfig)
	}
	if c.Auth.AccessTokenExpirationMs <= 0 {
		return fmt.Errorf("%w: access_token_expiration_ms must be positive", ErrInvalidAuthConfig)
	}
	if c.Auth.RefreshTokenExpirationDays <= 0 {
		return fmt.Errorf("%w: refresh_token_expiration_days must be positive", ErrInvalidAuthConfig)
	}
	if c.Match.RematchWindowSeconds <= 0 {
		return fmt.Errorf("%w: rematch_window_seconds must be positive", ErrInvalidMatchConfig)
	}
	if c.Match.LockTimeoutMs <= 0 {
		return fmt.Errorf("%w: lock_timeout_ms must be positive", ErrInvalidMatchConfig)
	}
	if err := c.Elo.Validate(); err != nil {
		return fmt.Errorf("elo config validation failed: %w", err)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidLogConfig, c.Log.Level)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, filename)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParseError, err)
	}

	return &config, nil
}

// LoadWithEnvironment loads configuration from file and applies environment
// variable overrides. A missing file is not an error: defaults are used so a
// fully environment-driven deployment needs no file at all.
func LoadWithEnvironment(filename string) (*Config, error) {
	config, err := LoadFromFile(filename)
	if err != nil {
		if !errors.Is(err, ErrConfigNotFound) {
			return nil, err
		}
		defaults := DefaultConfig()
		config = &defaults
	}

	applyEnvironmentOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid final configuration: %w", err)
	}

	return config, nil
}

// applyEnvironmentOverrides applies SMASHRANK_* environment variable overrides.
func applyEnvironmentOverrides(config *Config) {
	if val := os.Getenv("SMASHRANK_SERVER_ADDR"); val != "" {
		config.Server.Addr = val
	}
	if val := os.Getenv("SMASHRANK_DEV_AUTH"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.Server.DevAuth = parsed
		}
	}
	if val := os.Getenv("SMASHRANK_DATABASE_PATH"); val != "" {
		config.Database.Path = val
	}
	if val := os.Getenv("SMASHRANK_REDIS_ADDR"); val != "" {
		config.Pool.RedisAddr = val
	}
	if val := os.Getenv("SMASHRANK_JWT_SECRET"); val != "" {
		config.Auth.JWTSecret = val
	}
	if val := os.Getenv("SMASHRANK_ACCESS_TOKEN_EXPIRATION_MS"); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.Auth.AccessTokenExpirationMs = parsed
		}
	}
	if val := os.Getenv("SMASHRANK_REFRESH_TOKEN_EXPIRATION_DAYS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.Auth.RefreshTokenExpirationDays = parsed
		}
	}
	if val := os.Getenv("SMASHRANK_CONFIRM_WINDOW_SECONDS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.Match.ConfirmWindowSeconds = parsed
		}
	}
	if val := os.Getenv("SMASHRANK_REMATCH_WINDOW_SECONDS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.Match.RematchWindowSeconds = parsed
		}
	}
	if val := os.Getenv("SMASHRANK_LOCK_TIMEOUT_MS"); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.Match.LockTimeoutMs = parsed
		}
	}
	if val := os.Getenv("SMASHRANK_LOG_LEVEL"); val != "" {
		config.Log.Level = val
	}
	if val := os.Getenv("SMASHRANK_SEED_ENABLED"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.Seed.Enabled = parsed
		}
	}
}

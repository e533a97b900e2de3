// Package config provides configuration management for the vitalog auth
// service.
//
// Configuration is loaded from multiple sources with proper precedence
// (later sources override earlier ones):
//  1. Default values
//  2. Configuration files (./config.yaml, ./configs/config.yaml,
//     ~/.vitalog/config.yaml, /etc/vitalog/config.yaml)
//  3. .env files
//  4. Environment variables with the VITALOG_ prefix
//
// Environment variables use underscores for nested keys:
//   - VITALOG_SERVER_PORT=8095
//   - VITALOG_SECURITY_SIGNING_KEY=...
//   - VITALOG_DATABASE_DSN=host=localhost user=vitalog ...
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Host is the server bind address (default: 0.0.0.0)
	Host string `mapstructure:"host"`

	// Port is the server listen port (default: 8080)
	Port int `mapstructure:"port"`

	// ReadTimeout is the maximum duration for reading requests
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration for writing responses
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// ShutdownTimeout is the maximum duration for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Debug enables debug logging and echo debug mode
	Debug bool `mapstructure:"debug"`

	// AllowedOrigins are the CORS allowed origins
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// RateLimit is the request rate limit per second (0 = no limit)
	RateLimit float64 `mapstructure:"rate_limit"`

	// LoginRateLimit is the stricter per-IP limit for the login endpoint
	LoginRateLimit float64 `mapstructure:"login_rate_limit"`
}

// DatabaseConfig selects and configures the user directory backend.
type DatabaseConfig struct {
	// Driver is "postgres" or "bolt"
	Driver string `mapstructure:"driver"`

	// DSN is the postgres connection string
	DSN string `mapstructure:"dsn"`

	// Path is the bbolt database file for the embedded driver
	Path string `mapstructure:"path"`
}

// RedisConfig contains the audit stream store settings. When Addr is empty
// the audit sink falls back to structured logging.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `mapstructure:"level"`

	// Format is the log format (json, text)
	Format string `mapstructure:"format"`
}

// SecurityConfig contains the authentication core settings. Defaults mirror
// auth.DefaultSecurityPolicy; the signing key has no default.
type SecurityConfig struct {
	// SigningKey signs session tokens. Required, never logged.
	SigningKey string `mapstructure:"signing_key"`

	// PBKDF2Iterations is the password hashing work factor for new hashes
	PBKDF2Iterations int `mapstructure:"pbkdf2_iterations"`

	// MaxFailedAttempts is the failure count that triggers a lockout
	MaxFailedAttempts int `mapstructure:"max_failed_attempts"`

	// LockoutDuration is how long an account stays locked
	LockoutDuration time.Duration `mapstructure:"lockout_duration"`

	// SessionMaxAge is the session token lifetime
	SessionMaxAge time.Duration `mapstructure:"session_max_age"`

	// SessionRefreshAfter is the window after which claims should be
	// refreshed from the directory
	SessionRefreshAfter time.Duration `mapstructure:"session_refresh_after"`

	// CookieName is the session cookie name
	CookieName string `mapstructure:"cookie_name"`

	// CookieSecure marks the session cookie Secure (disable for local dev)
	CookieSecure bool `mapstructure:"cookie_secure"`

	// Route targets for the authorization policy
	LoginPath   string `mapstructure:"login_path"`
	HomePath    string `mapstructure:"home_path"`
	PendingPath string `mapstructure:"pending_path"`
}

// ServiceConfig contains service metadata.
type ServiceConfig struct {
	// Name is the service name
	Name string `mapstructure:"name"`

	// Environment is the deployment environment (development, production)
	Environment string `mapstructure:"environment"`
}

// Config is the root configuration for the auth service.
type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Security SecurityConfig `mapstructure:"security"`
}

// Loader provides configuration loading functionality.
type Loader struct {
	v      *viper.Viper
	prefix string
}

// NewLoader creates a new configuration loader with the given environment
// prefix (e.g. "VITALOG" -> "VITALOG_SERVER_PORT").
func NewLoader(envPrefix string) *Loader {
	return &Loader{
		v:      viper.New(),
		prefix: envPrefix,
	}
}

// SetConfigDefaults sets the standard service defaults. This should be called
// before Load.
func (l *Loader) SetConfigDefaults() {
	l.v.SetDefault("service.name", "vitalog-auth")
	l.v.SetDefault("service.environment", "development")

	l.v.SetDefault("server.host", "0.0.0.0")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.read_timeout", "30s")
	l.v.SetDefault("server.write_timeout", "30s")
	l.v.SetDefault("server.shutdown_timeout", "10s")
	l.v.SetDefault("server.debug", false)
	l.v.SetDefault("server.allowed_origins", []string{"*"})
	l.v.SetDefault("server.rate_limit", 0)
	l.v.SetDefault("server.login_rate_limit", 5)

	l.v.SetDefault("database.driver", "bolt")
	l.v.SetDefault("database.path", "vitalog.db")
	l.v.SetDefault("database.dsn", "")

	l.v.SetDefault("redis.addr", "")
	l.v.SetDefault("redis.password", "")
	l.v.SetDefault("redis.db", 0)
	l.v.SetDefault("redis.stream", "vitalog:audit")

	l.v.SetDefault("logging.level", "info")
	l.v.SetDefault("logging.format", "json")

	// Empty default so the key is known to viper and can be supplied via
	// environment; validation rejects the empty value.
	l.v.SetDefault("security.signing_key", "")

	l.v.SetDefault("security.pbkdf2_iterations", 100000)
	l.v.SetDefault("security.max_failed_attempts", 5)
	l.v.SetDefault("security.lockout_duration", "15m")
	l.v.SetDefault("security.session_max_age", "720h") // 30 days
	l.v.SetDefault("security.session_refresh_after", "24h")
	l.v.SetDefault("security.cookie_name", "vitalog_session")
	l.v.SetDefault("security.cookie_secure", true)
	l.v.SetDefault("security.login_path", "/login")
	l.v.SetDefault("security.home_path", "/dashboard")
	l.v.SetDefault("security.pending_path", "/pending")
}

// Load reads configuration from file, .env, and environment variables.
// If cfgFile is empty, config.yaml is searched in the standard locations.
func (l *Loader) Load(cfgFile string, target interface{}) error {
	if cfgFile != "" {
		l.v.SetConfigFile(cfgFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		l.v.AddConfigPath("./configs")
		l.v.AddConfigPath("$HOME/.vitalog")
		l.v.AddConfigPath("/etc/vitalog")
	}

	if err := l.v.ReadInConfig(); err != nil {
		if cfgFile != "" && !isFileNotFoundError(err) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		if cfgFile == "" {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	// Merge .env file if present
	l.v.SetConfigFile(".env")
	l.v.SetConfigType("env")
	_ = l.v.MergeInConfig()

	if l.prefix != "" {
		l.v.SetEnvPrefix(l.prefix)
	}
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if err := l.v.Unmarshal(target); err != nil {
		return fmt.Errorf("unable to decode config: %w", err)
	}

	return nil
}

// LoadConfig loads and validates the service configuration with standard
// defaults.
func LoadConfig(envPrefix, cfgFile string) (*Config, error) {
	loader := NewLoader(envPrefix)
	loader.SetConfigDefaults()

	cfg := &Config{}
	if err := loader.Load(cfgFile, cfg); err != nil {
		return nil, err
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ValidateConfig validates the loaded configuration.
func ValidateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for the postgres driver")
		}
	case "bolt":
		if cfg.Database.Path == "" {
			return fmt.Errorf("database path is required for the bolt driver")
		}
	default:
		return fmt.Errorf("unknown database driver: %q", cfg.Database.Driver)
	}

	if cfg.Security.SigningKey == "" {
		return fmt.Errorf("security signing_key is required")
	}
	if cfg.Security.MaxFailedAttempts < 1 {
		return fmt.Errorf("security max_failed_attempts must be >= 1")
	}

	return nil
}

// isFileNotFoundError checks if an error is a file not found error.
func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
	StoreDriver string `env:"STORE_DRIVER" default:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" default:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" default:"1"`
	SQLitePath  string `env:"SQLITE_PATH" default:"portalprefs.db"`

	RedisURL string `env:"REDIS_URL"`
	// RedisBreakerOpenFor is how long Redis calls fail fast after repeated errors.
	RedisBreakerOpenFor time.Duration `env:"REDIS_BREAKER_OPEN_FOR" default:"30s"`

	SessionSecret      string        `env:"SESSION_SECRET"`
	SessionMaxAge      time.Duration `env:"SESSION_MAX_AGE" default:"168h"` // 7 days
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" default:"30m"`

	RemoteUserHeader string `env:"REMOTE_USER_HEADER" default:"X-Remote-User"`
	GuestUser        string `env:"GUEST_USER" default:"guest"`
	ProfileRulesPath string `env:"PROFILE_RULES_PATH"`

	// SavePreferencesAtLogout persists preferences and layout when a session ends.
	SavePreferencesAtLogout bool `env:"SAVE_PREFERENCES_AT_LOGOUT" default:"false"`
	LocaleAware             bool `env:"LOCALE_AWARE" default:"false"`

	DescriptionCacheTTL time.Duration `env:"DESCRIPTION_CACHE_TTL" default:"10m"`
}

func Load() (*Config, error) {
	return load(validate)
}

// LoadStore loads the configuration for tools that only talk to the store.
// Session and HTTP settings are not validated. Overrides run before validation.
func LoadStore(overrides ...func(*Config)) (*Config, error) {
	return load(validateStore, overrides...)
}

func load(check func(*Config) error, overrides ...func(*Config)) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	for _, o := range overrides {
		o(&cfg)
	}
	if err := check(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if len(cfg.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 characters")
	}

	if err := validateStore(cfg); err != nil {
		return err
	}

	if cfg.RemoteUserHeader == "" {
		return errors.New("REMOTE_USER_HEADER must not be empty")
	}
	if cfg.SessionIdleTimeout <= 0 {
		return errors.New("SESSION_IDLE_TIMEOUT must be positive")
	}
	if cfg.RedisURL != "" && cfg.RedisBreakerOpenFor <= 0 {
		return errors.New("REDIS_BREAKER_OPEN_FOR must be positive")
	}

	return nil
}

func validateStore(cfg *Config) error {
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
		if cfg.DBMaxConns <= 0 || cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) must be between 0 and DB_MAX_CONNS (%d), which must be positive", cfg.DBMinConns, cfg.DBMaxConns)
		}
	case StoreDriverSQLite:
		if cfg.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverSQLite, cfg.StoreDriver)
	}
	return nil
}

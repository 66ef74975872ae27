package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config contains application configuration.
type Config struct {
	// DatabaseURL selects the storage backend: postgres:// (or a key=value DSN) or sqlite://path.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// APIKey is the shared secret expected in the X-API-KEY header.
	APIKey string `mapstructure:"API_KEY"`
	Port   string `mapstructure:"PORT"`

	DBConnectAttempts int           `mapstructure:"DB_CONNECT_ATTEMPTS"`
	DBConnectDelay    time.Duration `mapstructure:"DB_CONNECT_DELAY"`
	// AutoMigrate creates the telemetry table and its indices at startup.
	AutoMigrate bool `mapstructure:"AUTO_MIGRATE"`

	MaxBodyBytes int64  `mapstructure:"MAX_BODY_BYTES"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
}

// DefaultAPIKey is used when API_KEY is unset. It is only fit for local development.
const DefaultAPIKey = "changeme"

// Load reads configuration from environment variables and .env.
// Environment variables take precedence over .env entries.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "sqlite://telemetry.db")
	v.SetDefault("API_KEY", DefaultAPIKey)
	v.SetDefault("PORT", "5000")
	v.SetDefault("DB_CONNECT_ATTEMPTS", 10)
	v.SetDefault("DB_CONNECT_DELAY", "2s")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("MAX_BODY_BYTES", 1<<20)
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return Config{}, errors.New("config: DATABASE_URL must be set")
	}
	if cfg.APIKey == "" {
		return Config{}, errors.New("config: API_KEY must not be empty")
	}
	if cfg.Port == "" {
		return Config{}, errors.New("config: PORT must be set")
	}
	if cfg.DBConnectAttempts < 1 {
		cfg.DBConnectAttempts = 1
	}
	if cfg.DBConnectDelay < 0 {
		return Config{}, errors.New("config: DB_CONNECT_DELAY must not be negative")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, errors.New("config: MAX_BODY_BYTES must be positive")
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values fall back to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

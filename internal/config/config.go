// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Event sinks.
const (
	SinkNone  = "none"
	SinkRedis = "redis"
	SinkKafka = "kafka"
)

// minJWTSecretLength matches the token issuer's minimum.
const minJWTSecretLength = 16

// maxLitersCeiling keeps a single credit well inside NUMERIC(14, 3).
const maxLitersCeiling = 1_000_000

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8001"`

	// Storage
	StorageDriver  string        `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"colloil.db"`
	StorageTimeout time.Duration `env:"STORAGE_TIMEOUT" envDefault:"5s"`
	AutoMigrate    bool          `env:"AUTO_MIGRATE" envDefault:"true"`

	// Cache (Redis). Optional; empty disables caching and rate limiting.
	RedisURL string `env:"REDIS_URL"`

	// Bearer tokens
	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting of /api/auth/*
	RateLimitAuthEnabled bool `env:"RATE_LIMIT_AUTH_ENABLED" envDefault:"true"`
	RateLimitAuthRPS     int  `env:"RATE_LIMIT_AUTH_RPS" envDefault:"5"`
	RateLimitAuthBurst   int  `env:"RATE_LIMIT_AUTH_BURST" envDefault:"10"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://colloil.pl,https://app.colloil.pl")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`

	// Largest volume accepted by a single courier request
	MaxLitersPerRequest float64 `env:"MAX_LITERS_PER_REQUEST" envDefault:"1000"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Ledger events
	EventsSink       string `env:"EVENTS_SINK" envDefault:"none"`
	KafkaBrokers     string `env:"KAFKA_BROKERS"`
	KafkaTopic       string `env:"KAFKA_TOPIC" envDefault:"colloil.ledger"`
	KafkaClientID    string `env:"KAFKA_CLIENT_ID" envDefault:"colloil-api"`
	KafkaPartitions  int32  `env:"KAFKA_PARTITIONS" envDefault:"3"`
	KafkaReplication int16  `env:"KAFKA_REPLICATION" envDefault:"1"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// GetKafkaBrokers parses the comma-separated broker list.
func (c *Config) GetKafkaBrokers() []string {
	return splitList(c.KafkaBrokers)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORAGE_DRIVER=postgres"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when STORAGE_DRIVER=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.StorageDriver))
	}

	if len(c.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.StorageTimeout <= 0 {
		errs = append(errs, errors.New("STORAGE_TIMEOUT must be positive"))
	}
	if c.MaxLitersPerRequest <= 0 || c.MaxLitersPerRequest > maxLitersCeiling {
		errs = append(errs, fmt.Errorf("MAX_LITERS_PER_REQUEST must be in (0, %d]", maxLitersCeiling))
	}

	switch c.EventsSink {
	case SinkNone:
	case SinkRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when EVENTS_SINK=redis"))
		}
	case SinkKafka:
		if len(c.GetKafkaBrokers()) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when EVENTS_SINK=kafka"))
		}
		if c.KafkaTopic == "" {
			errs = append(errs, errors.New("KAFKA_TOPIC is required when EVENTS_SINK=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("EVENTS_SINK must be one of none, redis, kafka, got %q", c.EventsSink))
	}

	if c.RateLimitAuthEnabled && (c.RateLimitAuthRPS <= 0 || c.RateLimitAuthBurst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_AUTH_RPS and RATE_LIMIT_AUTH_BURST must be positive"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing or inconsistent.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

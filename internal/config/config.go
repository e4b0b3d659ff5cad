package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"golang.org/x/crypto/bcrypt"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the accounts service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort      int  `env:"HTTP_PORT" envDefault:"8080"`
	SecureCookies bool `env:"SECURE_COOKIES" envDefault:"false"`

	// PostgreSQL
	PostgresHost string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string        `env:"POSTGRES_USER" envDefault:"intellify"`
	PostgresPass string        `env:"POSTGRES_PASSWORD" envDefault:"intellify_secret"`
	PostgresDB   string        `env:"DB_NAME" envDefault:"intellify"`
	PostgresSSL  string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns   int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns   int32         `env:"DB_MIN_CONNS" envDefault:"5"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`

	SlowQueryThresholdMs int `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Sessions
	JWTSecret         string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	SessionMaxAge     time.Duration `env:"SESSION_MAX_AGE" envDefault:"720h"`
	BcryptCost        int           `env:"BCRYPT_COST" envDefault:"10"`
	HashConcurrency   int           `env:"HASH_CONCURRENCY" envDefault:"0"`
	PostLoginRedirect string        `env:"POST_LOGIN_REDIRECT" envDefault:"/dashboard"`

	// Google sign-in. Disabled while GOOGLE_CLIENT_ID is empty.
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL"`
	OAuthStateTTL      time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("load accounts config: parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("invalid postgres port: %d", c.PostgresPort)
	}

	// Outside development the JWT secret must be set explicitly and be strong.
	if !c.IsDevelopment() {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if c.HashConcurrency < 0 {
		return fmt.Errorf("HASH_CONCURRENCY must not be negative, got %d", c.HashConcurrency)
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive, got %s", c.SessionMaxAge)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	if c.OAuthStateTTL <= 0 {
		return fmt.Errorf("OAUTH_STATE_TTL must be positive, got %s", c.OAuthStateTTL)
	}
	if c.GoogleEnabled() && (c.GoogleClientSecret == "" || c.GoogleRedirectURL == "") {
		return fmt.Errorf("GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URL are required when GOOGLE_CLIENT_ID is set")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}

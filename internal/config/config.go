package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string `env:"SERVER_PORT" envDefault:"8080"`
	APIBaseURL  string `env:"API_BASE_URL" envDefault:"api"`
	MySQLDSN    string `env:"MYSQL_DSN" envDefault:"user:password@tcp(localhost:3306)/app?charset=utf8mb4&parseTime=True&loc=Local"`
	RedisAddr   string `env:"REDIS_ADDR"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`
	RedisPass   string `env:"REDIS_PASSWORD"`
	OTPOutbox   string `env:"OTP_OUTBOX_KEY" envDefault:"otp:outbox"`
	SwaggerHost string `env:"SWAGGER_HOST"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Token signing.
	SecretKey             string `env:"SECRET_KEY"`
	Algorithm             string `env:"ALGORITHM" envDefault:"HS256"`
	AccessTokenExpiresIn  int    `env:"ACCESS_TOKEN_EXPIRES_IN" envDefault:"15"`
	RefreshTokenExpiresIn int    `env:"REFRESH_TOKEN_EXPIRES_IN" envDefault:"60"`

	BcryptCost   int  `env:"BCRYPT_COST" envDefault:"10"`
	CookieSecure bool `env:"COOKIE_SECURE" envDefault:"false"`
}

// Load reads a local .env file when one exists, then builds Config from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found; relying on existing environment")
	}
	return Parse()
}

// Parse builds Config from the current process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("SECRET_KEY is required")
	}
	if c.AccessTokenExpiresIn <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRES_IN must be positive, got %d", c.AccessTokenExpiresIn)
	}
	if c.RefreshTokenExpiresIn <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_EXPIRES_IN must be positive, got %d", c.RefreshTokenExpiresIn)
	}
	return nil
}

// AccessTTL is the lifetime of minted session tokens.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenExpiresIn) * time.Minute
}

// RefreshTTL is parsed for compatibility; refresh currently reissues access tokens with AccessTTL.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpiresIn) * time.Minute
}

// AuthPrefix returns the route group under which auth endpoints are mounted.
func (c *Config) AuthPrefix() string {
	base := strings.Trim(c.APIBaseURL, "/")
	if base == "" {
		return "/auth"
	}
	return "/" + base + "/auth"
}

// SlogLevel maps LOG_LEVEL onto a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

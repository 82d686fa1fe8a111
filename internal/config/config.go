// Package config loads server settings.
//
// PRECEDENCE (lowest to highest):
//
//	defaults → .env file → environment variables → command-line flags
//
// Each layer only overrides the keys it actually sets, so an empty
// environment variable never wipes out a value from .env.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/sakif/articles-api/internal/auth"
)

const (
	defaultListenAddr  = "localhost:8080"
	defaultDatabaseDSN = "data/articles.db"
	defaultLogLevel    = LevelInfo
	defaultEnvironment = EnvProduction
)

// Config holds every setting the server reads at startup.
type Config struct {
	// Address the HTTP server listens on
	ListenAddr string

	// SQLite file path, ":memory:", or a postgres:// URL
	DatabaseDSN string

	// Redis address (host:port). Empty selects the in-process cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// HS256 signing key for access tokens
	JWTSecret string
	TokenTTL  time.Duration

	BcryptCost int

	LogLevel    string
	Environment string
}

// New returns a Config filled with defaults.
func New() *Config {
	return &Config{
		ListenAddr:  defaultListenAddr,
		DatabaseDSN: defaultDatabaseDSN,
		TokenTTL:    auth.DefaultTokenTTL,
		BcryptCost:  auth.DefaultCost,
		LogLevel:    defaultLogLevel,
		Environment: defaultEnvironment,
	}
}

// Load builds the configuration from every source in precedence order.
func Load(args []string) (*Config, error) {
	c := New()

	if err := c.LoadDotEnv(os.Getwd); err != nil {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	if err := c.LoadEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}
	if err := c.ParseFlags(args); err != nil {
		return nil, fmt.Errorf("config: parsing flags: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDotEnv reads a '.env' file from the working directory, if present.
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

// LoadEnv overrides settings from the given lookup function.
func (c *Config) LoadEnv(getenv func(string) string) error {
	setString := func(o *string) func(string) error {
		return func(value string) error {
			*o = value
			return nil
		}
	}
	setInt := func(o *int) func(string) error {
		return func(value string) error {
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(string) error {
		return func(value string) error {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":    setString(&c.ListenAddr),
		"DATABASE_DSN":   setString(&c.DatabaseDSN),
		"REDIS_ADDR":     setString(&c.RedisAddr),
		"REDIS_PASSWORD": setString(&c.RedisPassword),
		"REDIS_DB":       setInt(&c.RedisDB),
		"JWT_SECRET":     setString(&c.JWTSecret),
		"TOKEN_TTL":      setDuration(&c.TokenTTL),
		"BCRYPT_COST":    setInt(&c.BcryptCost),
		"LOG_LEVEL":      setString(&c.LogLevel),
		"ENVIRONMENT":    setString(&c.Environment),
	}

	var errs []error
	for key, parseFn := range envMap {
		value := getenv(key)
		if value == "" {
			continue
		}
		if err := parseFn(value); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", key, value, err))
		}
	}
	return errors.Join(errs...)
}

// ParseFlags overrides settings from command-line arguments (without the
// program name).
func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("articles-api", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "SQLite path or postgres:// URL")
	fs.StringVarP(&c.RedisAddr, "redis", "r", c.RedisAddr, "Redis address (empty for in-process cache)")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")
	fs.StringVarP(&c.JWTSecret, "secret", "s", c.JWTSecret, "JWT signing secret")
	fs.DurationVarP(&c.TokenTTL, "token-ttl", "t", c.TokenTTL, "Access token lifetime")
	fs.IntVar(&c.BcryptCost, "bcrypt-cost", c.BcryptCost, "bcrypt work factor")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < auth.MinSecretLength {
		errs = append(errs, fmt.Errorf("config: JWT secret must be at least %d characters", auth.MinSecretLength))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("config: token TTL must be positive"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("config: database DSN is required"))
	}
	if c.RedisDB < 0 {
		errs = append(errs, errors.New("config: redis db must not be negative"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	return errors.Join(errs...)
}

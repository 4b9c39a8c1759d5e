// Package config holds the settings of the sessionkit service and CLI.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is populated from CLI flags and their environment variables.
// The library packages never read the environment themselves.
type Config struct {
	Addr              string        // SESSIONKIT_ADDR
	RedisURL          string        // SESSIONKIT_REDIS_URL, empty keeps keys and events in memory
	KeyJWK            string        // SESSIONKIT_KEY_JWK, JWK JSON or base64 imported as the default key
	AuthToken         string        // SESSIONKIT_AUTH_TOKEN, bearer token protecting the HTTP API
	Env               string        // SESSIONKIT_ENV
	LogLevel          string        // SESSIONKIT_LOG_LEVEL
	InvocationTTL     time.Duration // SESSIONKIT_INVOCATION_TTL
	ResolverCacheSize int           // SESSIONKIT_RESOLVER_CACHE
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Addr:              ":9000",
		Env:               EnvDevelopment,
		LogLevel:          "info",
		InvocationTTL:     5 * time.Minute,
		ResolverCacheSize: 128,
	}
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		errs = append(errs, fmt.Errorf("addr %q: %w", c.Addr, err))
	}
	if c.RedisURL != "" && !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
		errs = append(errs, fmt.Errorf("redis url %q: scheme must be redis or rediss", c.RedisURL))
	}
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("env %q: must be %s or %s", c.Env, EnvDevelopment, EnvProduction))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if c.InvocationTTL <= 0 {
		errs = append(errs, fmt.Errorf("invocation ttl %s: must be positive", c.InvocationTTL))
	}
	if c.ResolverCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("resolver cache size %d: must be positive", c.ResolverCacheSize))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether logs should be human-readable
func (c Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// Level returns the parsed log level, info when unset or invalid
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return level
}

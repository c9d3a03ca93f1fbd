// Package config provides application configuration through environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"

	"github.com/allisson/protect/protection"
)

// Config holds all application configuration for the CLI and the stub server.
type Config struct {
	// BaseURL is the address of the protection service the client talks to.
	BaseURL string
	// ConnectTimeout is the maximum wait to establish a connection.
	ConnectTimeout time.Duration
	// RequestTimeout is the maximum wait per attempt for a response.
	RequestTimeout time.Duration
	// RetryCount is the number of retries for transient transport failures.
	RetryCount int
	// BackoffBase is the initial delay between retries.
	BackoffBase time.Duration
	// BackoffCap is the maximum delay between retries.
	BackoffCap time.Duration
	// RevealResponseField is the JSON field holding the plaintext in a reveal
	// response. Vendors disagree on its name.
	RevealResponseField string
	// RateLimitRequestsPerSec enables client-side rate limiting when > 0.
	RateLimitRequestsPerSec float64
	// RateLimitBurst is the burst size for client-side rate limiting.
	RateLimitBurst int

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// StubHost is the host address the stub server will bind to.
	StubHost string
	// StubPort is the port number the stub server will listen on.
	StubPort int

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string

	// CORSEnabled indicates whether CORS is enabled on the stub server.
	CORSEnabled bool
	// CORSAllowOrigins is a comma-separated list of allowed origins for CORS.
	CORSAllowOrigins string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	return &Config{
		// Client configuration
		BaseURL:                 env.GetString("PROTECT_BASE_URL", "http://localhost:8080"),
		ConnectTimeout:          env.GetDuration("PROTECT_CONNECT_TIMEOUT_SECONDS", 5, time.Second),
		RequestTimeout:          env.GetDuration("PROTECT_REQUEST_TIMEOUT_SECONDS", 10, time.Second),
		RetryCount:              env.GetInt("PROTECT_RETRY_COUNT", protection.DefaultRetryCount),
		BackoffBase:             env.GetDuration("PROTECT_BACKOFF_BASE_MS", 100, time.Millisecond),
		BackoffCap:              env.GetDuration("PROTECT_BACKOFF_CAP_MS", 2000, time.Millisecond),
		RevealResponseField:     env.GetString("PROTECT_REVEAL_RESPONSE_FIELD", protection.DefaultRevealResponseField),
		RateLimitRequestsPerSec: env.GetFloat64("PROTECT_RATE_LIMIT_REQUESTS_PER_SEC", 0),
		RateLimitBurst:          env.GetInt("PROTECT_RATE_LIMIT_BURST", 0),

		// Logging
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// Stub server configuration
		StubHost: env.GetString("STUB_HOST", "127.0.0.1"),
		StubPort: env.GetInt("STUB_PORT", 8080),

		// Metrics
		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "protect"),

		// CORS
		CORSEnabled:      env.GetBool("CORS_ENABLED", false),
		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", ""),
	}
}

// ClientConfig maps the environment configuration to a protection.Config.
func (c *Config) ClientConfig(logger *slog.Logger) protection.Config {
	return protection.Config{
		BaseURL:                 c.BaseURL,
		ConnectTimeout:          c.ConnectTimeout,
		RequestTimeout:          c.RequestTimeout,
		RetryCount:              c.RetryCount,
		BackoffBase:             c.BackoffBase,
		BackoffCap:              c.BackoffCap,
		RevealResponseField:     c.RevealResponseField,
		RateLimitRequestsPerSec: c.RateLimitRequestsPerSec,
		RateLimitBurst:          c.RateLimitBurst,
		Logger:                  logger,
	}
}

// StubAddr returns the stub server listen address as host:port.
func (c *Config) StubAddr() string {
	return fmt.Sprintf("%s:%d", c.StubHost, c.StubPort)
}

// GetGinMode returns the appropriate Gin mode based on log level.
func (c *Config) GetGinMode() string {
	switch c.LogLevel {
	case "debug":
		return "debug"
	default:
		return "release"
	}
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	// Search for .env file recursively up the directory tree
	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			// .env file found, load it
			_ = godotenv.Load(envPath)
			return
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}
}

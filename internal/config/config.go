// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/ArticleImport/internal/core"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Audit    AuditConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds file upload and commit settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of commits running at once (default: 3)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"3"`

	// MaxWaitTime is how long a commit waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration of a single commit run (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`

	// SessionTTL is how long an idle import session is kept (default: 1h)
	SessionTTL time.Duration `env:"UPLOAD_SESSION_TTL" default:"1h"`
}

// ImportConfig holds the configuration new import sessions start with.
type ImportConfig struct {
	SkipDuplicates bool `env:"IMPORT_SKIP_DUPLICATES" default:"true"`
	UpdateExisting bool `env:"IMPORT_UPDATE_EXISTING" default:"false"`
	ValidateData   bool `env:"IMPORT_VALIDATE_DATA" default:"true"`
	AutoMapping    bool `env:"IMPORT_AUTO_MAPPING" default:"true"`

	// DefaultBranch is created on startup if missing and preselected
	// for new sessions. Empty leaves the branch unset.
	DefaultBranch string `env:"IMPORT_DEFAULT_BRANCH"`

	// DefaultTaxRate and DefaultMinQuantity fill blank cells when set.
	DefaultTaxRate     *float64 `env:"IMPORT_DEFAULT_TAX_RATE"`
	DefaultMinQuantity *int     `env:"IMPORT_DEFAULT_MIN_QUANTITY"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// UploadLimit is uploads per minute per IP (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// AuditConfig holds import history retention settings.
type AuditConfig struct {
	// RetentionDays is days to keep import runs (default: 90)
	RetentionDays int `env:"AUDIT_RETENTION_DAYS" default:"90"`

	// CheckInterval is how often to prune old import runs (default: 24h)
	CheckInterval time.Duration `env:"AUDIT_CHECK_INTERVAL" default:"24h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// ImportDefaults returns the configuration new sessions start with.
// branchID is the resolved id of DefaultBranch, or empty.
func (c *ImportConfig) ImportDefaults(branchID string) core.ImportConfiguration {
	return core.ImportConfiguration{
		SkipDuplicates:     c.SkipDuplicates,
		UpdateExisting:     c.UpdateExisting,
		ValidateData:       c.ValidateData,
		AutoMapping:        c.AutoMapping,
		DefaultBranchID:    branchID,
		DefaultTaxRate:     c.DefaultTaxRate,
		DefaultMinQuantity: c.DefaultMinQuantity,
	}
}

// ServiceOptions translates upload settings into core service options.
func (c *Config) ServiceOptions(defaults core.ImportConfiguration) core.ServiceOptions {
	return core.ServiceOptions{
		MaxFileSize:   c.Upload.MaxFileSize,
		CommitTimeout: c.Upload.Timeout,
		SessionTTL:    c.Upload.SessionTTL,
		MaxConcurrent: c.Upload.MaxConcurrent,
		MaxWait:       c.Upload.MaxWaitTime,
		Defaults:      &defaults,
	}
}

// Package config loads the service configuration from environment variables
// with defaults, and validates it on startup so misconfiguration fails fast.
//
// The master-file catalogue is not configuration; it is built in code by
// the master package. Only its base URL comes from here.
package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Sync     SyncConfig
	ErrorLog ErrorLogConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout must outlast a synchronous refresh (default: 10m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"10m"`

	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including running refreshes (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 10m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`
}

// DatabaseConfig selects and sizes the instrument store.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite" (default: sqlite)
	Driver string `env:"STORE_DRIVER" default:"sqlite"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite driver (default: mastersync.db)
	SQLitePath string `env:"SQLITE_PATH" default:"mastersync.db"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// DSN returns the connection string for the selected driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}
	return c.URL
}

// SyncConfig holds master file synchronization settings.
type SyncConfig struct {
	// WorkDir holds per-tool downloads and snapshots (default: masters)
	WorkDir string `env:"SYNC_WORK_DIR" default:"masters"`

	// MasterBaseURL is where master archives are published
	MasterBaseURL string `env:"SYNC_MASTER_BASE_URL" default:"https://new.real.download.dws.co.kr/common/master"`

	// DownloadTimeout bounds one master download (default: 60s)
	DownloadTimeout time.Duration `env:"SYNC_DOWNLOAD_TIMEOUT" default:"60s"`

	// InsecureSkipVerify disables TLS verification for master downloads only
	InsecureSkipVerify bool `env:"SYNC_INSECURE_SKIP_VERIFY" default:"false"`

	// LeaseWait is how long a refresh waits for a running refresh of the same tool (default: 2m)
	LeaseWait time.Duration `env:"SYNC_LEASE_WAIT" default:"2m"`

	// RefreshTimeout bounds one tool refresh once it has started (default: 10m)
	RefreshTimeout time.Duration `env:"SYNC_REFRESH_TIMEOUT" default:"10m"`

	// SchedulerEnabled turns on background refreshes (default: false)
	SchedulerEnabled bool `env:"SYNC_SCHEDULER_ENABLED" default:"false"`

	// RefreshInterval is the scheduler period (default: 1h)
	RefreshInterval time.Duration `env:"SYNC_REFRESH_INTERVAL" default:"1h"`

	// RefreshOnStart runs a scheduler pass at startup (default: true)
	RefreshOnStart bool `env:"SYNC_REFRESH_ON_START" default:"true"`
}

// ErrorLogConfig holds advisory error log settings.
type ErrorLogConfig struct {
	// Path of the JSON-lines file; empty means sync_errors.jsonl in the work dir
	Path string `env:"ERROR_LOG_PATH"`

	// Tail is how many entries are kept in memory for queries (default: 500)
	Tail int `env:"ERROR_LOG_TAIL" default:"500"`
}

// ErrorLogPath resolves the error log location against the work dir.
func (c *Config) ErrorLogPath() string {
	if c.ErrorLog.Path != "" {
		return c.ErrorLog.Path
	}
	return filepath.Join(c.Sync.WorkDir, "sync_errors.jsonl")
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the limit per client IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey guards the refresh endpoint with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			errs = append(errs, "SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER (%q) must be one of: postgres, sqlite", c.Database.Driver))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Sync.WorkDir == "" {
		errs = append(errs, "SYNC_WORK_DIR must not be empty")
	}
	if !strings.HasPrefix(c.Sync.MasterBaseURL, "http://") && !strings.HasPrefix(c.Sync.MasterBaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("SYNC_MASTER_BASE_URL (%q) must be an http(s) URL", c.Sync.MasterBaseURL))
	}
	if c.Sync.DownloadTimeout <= 0 {
		errs = append(errs, "SYNC_DOWNLOAD_TIMEOUT must be positive")
	}
	if c.Sync.LeaseWait <= 0 {
		errs = append(errs, "SYNC_LEASE_WAIT must be positive")
	}
	if c.Sync.RefreshTimeout <= 0 {
		errs = append(errs, "SYNC_REFRESH_TIMEOUT must be positive")
	}
	if c.Sync.SchedulerEnabled && c.Sync.RefreshInterval <= 0 {
		errs = append(errs, "SYNC_REFRESH_INTERVAL must be positive when the scheduler is enabled")
	}

	if c.ErrorLog.Tail <= 0 {
		errs = append(errs, "ERROR_LOG_TAIL must be positive")
	}

	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a safe representation for logging. The database URL and
// API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {Driver: %q, URL: [MASKED], SQLitePath: %q, MaxConns: %d}, ",
		c.Database.Driver, c.Database.SQLitePath, c.Database.MaxConns)
	fmt.Fprintf(&b, "Sync: {WorkDir: %q, BaseURL: %q, Timeout: %s, InsecureSkipVerify: %v, Scheduler: %v}, ",
		c.Sync.WorkDir, c.Sync.MasterBaseURL, c.Sync.DownloadTimeout, c.Sync.InsecureSkipVerify, c.Sync.SchedulerEnabled)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d}, ", c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

// Package config loads application settings from environment variables with
// defaults and validates them on startup so misconfiguration fails fast.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Import     ImportConfig
	MassDelete MassDeleteConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Storage    StorageConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is 0 by default so SSE progress streams stay open.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout applies to every route except the progress stream.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds entity store settings.
type DatabaseConfig struct {
	// Backend is postgres or memory. The memory backend loses everything on
	// restart and is meant for demos and local runs.
	Backend string `env:"STORE_BACKEND" default:"postgres"`

	// URL is the PostgreSQL connection string, required for postgres.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds CSV import pacing and limits.
type ImportConfig struct {
	// BatchSize is the number of records per bulk create call.
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"5"`

	// BatchDelay is the pause between bulk create calls.
	BatchDelay time.Duration `env:"IMPORT_BATCH_DELAY" default:"2s"`

	// MaxFileSize accepts plain bytes or a KB/MB/GB suffix.
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10MB" unit:"bytes"`

	MaxConcurrent int           `env:"IMPORT_MAX_CONCURRENT" default:"5"`
	MaxWaitTime   time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`
	Timeout       time.Duration `env:"IMPORT_TIMEOUT" default:"30m"`

	// ResultRetention is how long finished runs stay queryable.
	ResultRetention time.Duration `env:"IMPORT_RESULT_RETENTION" default:"10m"`
}

// MassDeleteConfig paces bulk asset deletion.
type MassDeleteConfig struct {
	BatchSize  int           `env:"MASS_DELETE_BATCH_SIZE" default:"5"`
	BatchDelay time.Duration `env:"MASS_DELETE_BATCH_DELAY" default:"1s"`
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute applies to every API route.
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for import and attachment uploads.
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Forwarded-For headers are honored.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// StorageConfig holds attachment object storage settings. Attachments are
// disabled when Bucket is empty.
type StorageConfig struct {
	Bucket string `env:"S3_BUCKET"`
	Region string `env:"S3_REGION" envAlt:"AWS_REGION" default:"us-east-1"`

	// Endpoint points the client at an S3-compatible store such as MinIO.
	Endpoint     string `env:"S3_ENDPOINT" envAlt:"AWS_S3_ENDPOINT"`
	UsePathStyle bool   `env:"S3_USE_PATH_STYLE" default:"false"`

	PresignTTL time.Duration `env:"S3_PRESIGN_TTL" default:"15m"`
}

// Enabled reports whether attachment storage is configured.
func (s StorageConfig) Enabled() bool { return s.Bucket != "" }

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json.
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Validate checks that the configuration is usable. It reports every
// problem at once.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Database.Backend) {
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required when STORE_BACKEND is postgres")
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
	case BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("STORE_BACKEND (%q) must be one of: postgres, memory", c.Database.Backend))
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

	if c.Import.BatchSize <= 0 {
		errs = append(errs, "IMPORT_BATCH_SIZE must be positive")
	}
	if c.Import.BatchDelay < 0 {
		errs = append(errs, "IMPORT_BATCH_DELAY must be non-negative")
	}
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}
	if c.Import.Timeout <= 0 {
		errs = append(errs, "IMPORT_TIMEOUT must be positive")
	}
	if c.Import.ResultRetention <= 0 {
		errs = append(errs, "IMPORT_RESULT_RETENTION must be positive")
	}

	if c.MassDelete.BatchSize <= 0 {
		errs = append(errs, "MASS_DELETE_BATCH_SIZE must be positive")
	}
	if c.MassDelete.BatchDelay < 0 {
		errs = append(errs, "MASS_DELETE_BATCH_DELAY must be non-negative")
	}

	if c.Rate.Enabled {
		if c.Rate.RequestsPerMinute <= 0 {
			errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
		}
		if c.Rate.UploadLimit <= 0 {
			errs = append(errs, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
		}
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	if c.Storage.Enabled() && c.Storage.PresignTTL <= 0 {
		errs = append(errs, "S3_PRESIGN_TTL must be positive")
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

// String returns a representation safe for logging. The database URL and
// API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {Backend: %q, URL: [MASKED], MaxConns: %d}, ", c.Database.Backend, c.Database.MaxConns)
	fmt.Fprintf(&b, "Import: {BatchSize: %d, BatchDelay: %s, MaxFileSize: %d, MaxConcurrent: %d}, ",
		c.Import.BatchSize, c.Import.BatchDelay, c.Import.MaxFileSize, c.Import.MaxConcurrent)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d, UploadLimit: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Rate.UploadLimit)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ", c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Storage: {Bucket: %q, Region: %q}, ", c.Storage.Bucket, c.Storage.Region)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

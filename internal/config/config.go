// Package config loads labtrack settings from environment variables with
// defaults and validates them on startup so misconfiguration fails fast.
package config

import (
	"net"
	"strconv"
	"time"
	_ "time/tzdata"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server      ServerConfig
	Sheets      SheetsConfig
	Attachments AttachmentsConfig
	Rate        RateLimitConfig
	Security    SecurityConfig
	Audit       AuditConfig
	Logging     LoggingConfig
	Tracing     TracingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request, uploads
	// included (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing a response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 45s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"45s"`
}

// Sheets backends.
const (
	SheetsGoogle = "google"
	SheetsMemory = "memory"
)

// SheetsConfig selects the spreadsheet backend and the sheets it serves.
type SheetsConfig struct {
	// Backend is "google" or "memory". Memory serves the demo data (default: google)
	Backend string `env:"SHEETS_BACKEND" default:"google"`

	// CredentialsBase64 is the base64-encoded service account JSON
	CredentialsBase64 string `env:"GOOGLE_CREDENTIALS_BASE64" envAlt:"GOOGLE_CREDENTIALS"`

	// SaoLucasID is the spreadsheet holding the São Lucas exams
	SaoLucasID string `env:"SHEET_SAO_LUCAS_ID" envAlt:"SPREADSHEET_ID_SAO_LUCAS"`

	// SaoJoaoID is the spreadsheet holding the São João exams
	SaoJoaoID string `env:"SHEET_SAO_JOAO_ID" envAlt:"SPREADSHEET_ID_SAO_JOAO"`

	// RecoletaID is the spreadsheet holding the re-collection list
	RecoletaID string `env:"SHEET_RECOLETA_ID" envAlt:"SPREADSHEET_ID_RECOLETA"`

	// Title is the tab name in every spreadsheet; empty means the first tab
	Title string `env:"SHEETS_TAB_TITLE"`

	// Timezone interprets the DD/MM/YYYY dates (default: America/Sao_Paulo)
	Timezone string `env:"SHEETS_TIMEZONE" default:"America/Sao_Paulo"`

	// CallTimeout bounds every backend call (default: 10s)
	CallTimeout time.Duration `env:"SHEETS_CALL_TIMEOUT" default:"10s"`

	// StrictUpdate turns an update of a vanished record into an error
	// instead of an append (default: false)
	StrictUpdate bool `env:"SHEETS_STRICT_UPDATE" default:"false"`

	// BreakerFailures is the consecutive failure count that opens the
	// circuit (default: 5)
	BreakerFailures int `env:"SHEETS_BREAKER_FAILURES" default:"5"`

	// BreakerOpenTimeout is how long the circuit stays open (default: 30s)
	BreakerOpenTimeout time.Duration `env:"SHEETS_BREAKER_OPEN_TIMEOUT" default:"30s"`

	// BreakerHalfOpenRequests is the number of trial calls in half-open state (default: 1)
	BreakerHalfOpenRequests int `env:"SHEETS_BREAKER_HALF_OPEN_REQUESTS" default:"1"`
}

// Attachment backends.
const (
	AttachmentsCloudinary = "cloudinary"
	AttachmentsS3         = "s3"
	AttachmentsMemory     = "memory"
)

// AttachmentsConfig selects where exam result files are stored.
type AttachmentsConfig struct {
	// Backend is "cloudinary", "s3" or "memory" (default: cloudinary)
	Backend string `env:"ATTACHMENTS_BACKEND" default:"cloudinary"`

	CloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	APIKey    string `env:"CLOUDINARY_API_KEY"`
	APISecret string `env:"CLOUDINARY_API_SECRET"`

	// Folder prefixes Cloudinary public ids
	Folder string `env:"CLOUDINARY_FOLDER"`

	S3Bucket string `env:"S3_BUCKET"`
	S3Region string `env:"S3_REGION" envAlt:"AWS_REGION"`
	S3Prefix string `env:"S3_PREFIX" default:"exams"`

	// S3PublicBaseURL overrides the virtual-hosted bucket URL, for a CDN
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`

	// MaxFileSize is the maximum allowed file size in bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent is the maximum number of parallel uploads (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for an upload slot (default: 15s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"15s"`
}

// RateLimitConfig holds rate limiting settings per client IP.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// Burst is the token bucket size (default: 20)
	Burst int `env:"RATE_LIMIT_BURST" default:"20"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// SessionSecret signs session cookies; at least 32 bytes
	SessionSecret string `env:"SESSION_SECRET"`

	// SessionTTL is how long a login lasts (default: 12h)
	SessionTTL time.Duration `env:"SESSION_TTL" default:"12h"`

	// SecureCookie sets the Secure flag on the session cookie (default: true)
	SecureCookie bool `env:"SESSION_SECURE_COOKIE" default:"true"`

	// Users is a comma-separated list of email|role|bcrypt-hash entries
	Users []string `env:"AUTH_USERS"`
}

// AuditConfig holds the optional audit trail database settings.
type AuditConfig struct {
	// DatabaseURL is the PostgreSQL connection string; empty disables the trail
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// RetentionDays is how long entries are kept (default: 180)
	RetentionDays int `env:"AUDIT_RETENTION_DAYS" default:"180"`

	// PurgeInterval is how often old entries are deleted (default: 24h)
	PurgeInterval time.Duration `env:"AUDIT_PURGE_INTERVAL" default:"24h"`
}

// Enabled reports whether a database is configured.
func (c AuditConfig) Enabled() bool {
	return c.DatabaseURL != ""
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	// Enabled turns on OTLP export (default: false)
	Enabled bool `env:"TRACING_ENABLED" default:"false"`

	// Endpoint is the OTLP HTTP collector host:port (default: localhost:4318)
	Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`

	// Insecure disables TLS to the collector (default: true)
	Insecure bool `env:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`

	// ServiceName is the service.name resource attribute (default: labtrack)
	ServiceName string `env:"OTEL_SERVICE_NAME" default:"labtrack"`

	// SampleRate is the fraction of traces kept (default: 1)
	SampleRate float64 `env:"TRACING_SAMPLE_RATE" default:"1"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Location loads the sheet timezone.
func (c *SheetsConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

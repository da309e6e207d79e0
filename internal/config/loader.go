package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid is wrapped by every error Load returns.
var ErrInvalid = errors.New("invalid configuration")

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("%w: config load: %w", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: config validation: %w", ErrInvalid, err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Sheets validation
	switch strings.ToLower(c.Sheets.Backend) {
	case SheetsMemory:
	case SheetsGoogle:
		if c.Sheets.CredentialsBase64 == "" {
			errs = append(errs, "GOOGLE_CREDENTIALS_BASE64 is required for the google sheets backend")
		} else if _, err := base64.StdEncoding.DecodeString(c.Sheets.CredentialsBase64); err != nil {
			errs = append(errs, "GOOGLE_CREDENTIALS_BASE64 is not valid base64")
		}
		if c.Sheets.SaoLucasID == "" && c.Sheets.SaoJoaoID == "" && c.Sheets.RecoletaID == "" {
			errs = append(errs, "at least one of SHEET_SAO_LUCAS_ID, SHEET_SAO_JOAO_ID, SHEET_RECOLETA_ID is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("SHEETS_BACKEND (%q) must be one of: google, memory", c.Sheets.Backend))
	}
	if _, err := c.Sheets.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("SHEETS_TIMEZONE (%q) is not a known timezone", c.Sheets.Timezone))
	}
	if c.Sheets.CallTimeout <= 0 {
		errs = append(errs, "SHEETS_CALL_TIMEOUT must be positive")
	}
	if c.Sheets.BreakerFailures <= 0 {
		errs = append(errs, "SHEETS_BREAKER_FAILURES must be positive")
	}
	if c.Sheets.BreakerOpenTimeout <= 0 {
		errs = append(errs, "SHEETS_BREAKER_OPEN_TIMEOUT must be positive")
	}
	if c.Sheets.BreakerHalfOpenRequests <= 0 {
		errs = append(errs, "SHEETS_BREAKER_HALF_OPEN_REQUESTS must be positive")
	}

	// Attachments validation
	switch strings.ToLower(c.Attachments.Backend) {
	case AttachmentsMemory:
	case AttachmentsCloudinary:
		if c.Attachments.CloudName == "" || c.Attachments.APIKey == "" || c.Attachments.APISecret == "" {
			errs = append(errs, "CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required for the cloudinary backend")
		}
	case AttachmentsS3:
		if c.Attachments.S3Bucket == "" || c.Attachments.S3Region == "" {
			errs = append(errs, "S3_BUCKET and S3_REGION are required for the s3 backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("ATTACHMENTS_BACKEND (%q) must be one of: cloudinary, s3, memory", c.Attachments.Backend))
	}
	if c.Attachments.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Attachments.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Attachments.MaxWaitTime <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT_TIME must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}

	// Security validation
	for _, p := range c.Security.TrustedProxies {
		if _, err := netip.ParsePrefix(p); err != nil {
			errs = append(errs, fmt.Sprintf("TRUSTED_PROXIES entry %q is not a CIDR", p))
		}
	}
	if len(c.Security.Users) == 0 && !strings.EqualFold(c.Sheets.Backend, SheetsMemory) {
		errs = append(errs, "AUTH_USERS is required outside demo mode")
	}
	if len(c.Security.Users) > 0 && len(c.Security.SessionSecret) < 32 {
		errs = append(errs, "SESSION_SECRET must be at least 32 bytes when AUTH_USERS is set")
	}
	if c.Security.SessionTTL <= 0 {
		errs = append(errs, "SESSION_TTL must be positive")
	}

	// Audit validation
	if c.Audit.Enabled() {
		if c.Audit.MaxConns < c.Audit.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Audit.MaxConns, c.Audit.MinConns))
		}
		if c.Audit.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Audit.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
		if c.Audit.RetentionDays <= 0 {
			errs = append(errs, "AUDIT_RETENTION_DAYS must be positive")
		}
		if c.Audit.PurgeInterval <= 0 {
			errs = append(errs, "AUDIT_PURGE_INTERVAL must be positive")
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	// Tracing validation
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("TRACING_SAMPLE_RATE (%g) must be between 0 and 1", c.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Credentials, secrets and the database URL are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Sheets: {Backend: %q, Credentials: %s, Timezone: %q, StrictUpdate: %v}, ",
		c.Sheets.Backend, mask(c.Sheets.CredentialsBase64), c.Sheets.Timezone, c.Sheets.StrictUpdate)
	fmt.Fprintf(&b, "Attachments: {Backend: %q, APISecret: %s, MaxFileSize: %d, MaxConcurrent: %d}, ",
		c.Attachments.Backend, mask(c.Attachments.APISecret), c.Attachments.MaxFileSize, c.Attachments.MaxConcurrent)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {SessionSecret: %s, Users: %d}, ",
		mask(c.Security.SessionSecret), len(c.Security.Users))
	fmt.Fprintf(&b, "Audit: {URL: %s, RetentionDays: %d}, ",
		mask(c.Audit.DatabaseURL), c.Audit.RetentionDays)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}, ",
		c.Logging.Level, c.Logging.Format)
	fmt.Fprintf(&b, "Tracing: {Enabled: %v, Endpoint: %q}",
		c.Tracing.Enabled, c.Tracing.Endpoint)
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}

// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - HTTP: listen address, service identity
//   - Storage: PostgreSQL connection (see storage.go)
//   - Tenancy: default tenant and slug-to-UUID mapping (see tenants.go)
//   - Event bus: outbox publishing toggle and subject
//   - Scedge: optional edge-cache bridge base URL
//   - OTLP: trace export (see observability.go)
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidHTTPAddr indicates the HTTP listen address is invalid.
	ErrInvalidHTTPAddr = errors.New("invalid HTTP address")

	// ErrInvalidServiceName indicates the service name is empty.
	ErrInvalidServiceName = errors.New("invalid service name")

	// ErrInvalidTenantID indicates a tenant UUID could not be parsed.
	ErrInvalidTenantID = errors.New("invalid tenant ID")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidOutboxBatch indicates the outbox batch size is out of range.
	ErrInvalidOutboxBatch = errors.New("invalid outbox batch size")
)

// DefaultEventSubject is the bus subject outbox events are published on.
const DefaultEventSubject = "scedge:events"

// EventBusConfig controls publication of claimed outbox events.
type EventBusConfig struct {
	// Enabled gates event emission entirely; when false the ingest path
	// writes no outbox rows.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Subject is the bus subject events are published on.
	Subject string `mapstructure:"subject" json:"subject"`
}

// ScedgeConfig holds the optional Scedge bridge settings.
type ScedgeConfig struct {
	// BaseURL of the Scedge instance; empty disables the bridge.
	BaseURL string `mapstructure:"base_url" json:"base_url"`
}

// OutboxConfig tunes the background dispatcher.
type OutboxConfig struct {
	// BatchSize is the maximum events claimed per dispatch cycle.
	BatchSize int `mapstructure:"batch_size" json:"batch_size"`
	// IntervalSeconds is the dispatch polling interval.
	IntervalSeconds int `mapstructure:"interval_seconds" json:"interval_seconds"`
}

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// HTTP server configuration
	HTTPAddr    string `mapstructure:"http_addr" json:"http_addr"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`

	// DatabaseURL selects the Postgres backend when set; when empty the
	// service runs on the in-memory store.
	DatabaseURL string `mapstructure:"database_url" json:"database_url"` // SENSITIVE: masked in MarshalJSON

	// Tenancy configuration (see tenants.go for resolution helpers)
	DefaultTenantID string `mapstructure:"default_tenant_id" json:"default_tenant_id"`
	TenantSlugs     string `mapstructure:"tenant_slugs" json:"tenant_slugs"` // "slug=uuid,slug=uuid"

	// Event bus and outbox configuration
	EventBus EventBusConfig `mapstructure:"event_bus" json:"event_bus"`
	Outbox   OutboxConfig   `mapstructure:"outbox" json:"outbox"`

	// Scedge bridge configuration
	Scedge ScedgeConfig `mapstructure:"scedge" json:"scedge"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Observability configuration (see observability.go for type definition)
	OTLP OTLPConfig `mapstructure:"otlp" json:"otlp"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/synagraph")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL (when set) populates the individual postgres_* fields so
	// the DSN helpers stay consistent with the URL form.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("http_addr", "0.0.0.0:8080")
	viper.SetDefault("service_name", "synagraph")

	viper.SetDefault("default_tenant_id", uuid.Nil.String())
	viper.SetDefault("tenant_slugs", "")

	viper.SetDefault("event_bus.enabled", false)
	viper.SetDefault("event_bus.subject", DefaultEventSubject)

	viper.SetDefault("outbox.batch_size", 32)
	viper.SetDefault("outbox.interval_seconds", 2)

	viper.SetDefault("scedge.base_url", "")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "synagraph")
	viper.SetDefault("postgres_password", "synagraph_dev_password")
	viper.SetDefault("postgres_db_name", "synagraph")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// OTLP defaults
	viper.SetDefault("otlp.enabled", false)
	viper.SetDefault("otlp.endpoint", "localhost:4318")
	viper.SetDefault("otlp.environment", "dev")
	viper.SetDefault("otlp.service_name", "synagraph")
}

// bindEnvVariables binds deployment environment variables explicitly.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("http_addr", "HTTP_ADDR")
	mustBind("service_name", "SERVICE_NAME")
	mustBind("database_url", "DATABASE_URL")
	mustBind("default_tenant_id", "DEFAULT_TENANT_ID")
	mustBind("tenant_slugs", "TENANT_SLUGS")
	mustBind("event_bus.enabled", "SCEDGE_EVENT_BUS_ENABLED")
	mustBind("event_bus.subject", "SCEDGE_EVENT_BUS_SUBJECT")
	mustBind("scedge.base_url", "SCEDGE_BASE_URL")
	mustBind("otlp.enabled", "OTLP_ENABLED")
	mustBind("otlp.endpoint", "OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid substring matching against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - DatabaseURL (may embed credentials)
//   - PostgresPassword
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.DatabaseURL = maskSecret(a.DatabaseURL)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// UsePostgres reports whether a Postgres backend was requested.
func (c *Config) UsePostgres() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

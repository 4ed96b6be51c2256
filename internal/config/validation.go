package config

import (
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. HTTP surface validation
	if _, _, err := net.SplitHostPort(c.HTTPAddr); err != nil {
		return fmt.Errorf("%w: %q is not host:port: %v", ErrInvalidHTTPAddr, c.HTTPAddr, err)
	}

	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("%w: service_name cannot be empty", ErrInvalidServiceName)
	}

	// 2. Tenancy validation
	if c.DefaultTenantID != "" {
		if _, err := uuid.Parse(c.DefaultTenantID); err != nil {
			return fmt.Errorf("%w: default_tenant_id %q: %v", ErrInvalidTenantID, c.DefaultTenantID, err)
		}
	}

	// 3. Outbox validation
	if c.Outbox.BatchSize < 1 || c.Outbox.BatchSize > 1024 {
		return fmt.Errorf("%w: must be between 1 and 1024, got %d", ErrInvalidOutboxBatch, c.Outbox.BatchSize)
	}

	// The remaining checks only matter when a Postgres backend is selected;
	// the in-memory store never touches these fields.
	if !c.UsePostgres() {
		return nil
	}

	// 4. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// CRITICAL: Warn if using default dev password (but don't block - user might be in dev)
	if c.PostgresPassword == "synagraph_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password for production deployments")
	}

	// 5. PostgreSQL SSL mode validation
	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}

	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}

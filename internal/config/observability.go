package config

// OTLPConfig holds OpenTelemetry trace export configuration.
//
// Traces are shipped over OTLP/HTTP to a local collector or agent.
// See internal/observability/tracing.go for the exporter setup.
type OTLPConfig struct {
	// Enabled toggles trace export; when false spans stay in-process.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Endpoint is the OTLP/HTTP collector endpoint (default: localhost:4318)
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name on exported spans (default: synagraph)
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

package telemetry

// Predefined service configurations
var (
	// SagaServiceConfig is the telemetry configuration for the saga orchestrator service
	SagaServiceConfig = Config{
		ServiceName:    "saga-service",
		ServiceVersion: "1.0.0",
	}

	// DefaultConfig is the default telemetry configuration
	DefaultConfig = Config{
		ServiceName:    "unknown-service",
		ServiceVersion: "1.0.0",
	}
)

// WithOTLPEndpoint sets the OTLP endpoint for a config
func (c Config) WithOTLPEndpoint(endpoint string) Config {
	c.OTLPEndpoint = endpoint
	return c
}

// WithServiceName sets the service name for a config
func (c Config) WithServiceName(name string) Config {
	if name != "" {
		c.ServiceName = name
	}
	return c
}

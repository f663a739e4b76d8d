package telemetry

// Config holds OpenTelemetry tracing configuration.
type Config struct {
	// Enabled turns span export on. When false every span is a no-op.
	Enabled bool

	// ServiceName is reported as service.name on every span.
	ServiceName string

	// ServiceVersion is reported as service.version.
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector address (e.g., "localhost:4317").
	Endpoint string

	// Insecure disables TLS towards the collector.
	Insecure bool

	// SampleRate is the trace sampling ratio in [0, 1].
	SampleRate float64
}

// DefaultConfig returns tracing disabled with a local collector address.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "blobsweep",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

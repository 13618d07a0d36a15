package instrumentation

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName is the name of the service (default: sheetsbridge)
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// ServiceInstanceID is the unique instance identifier (default: hostname)
	ServiceInstanceID string

	// K8sNamespace is the Kubernetes namespace where the service is running
	K8sNamespace string

	// K8sPodName is the Kubernetes pod name
	K8sPodName string

	// Enabled determines if instrumentation is active (default: true)
	// Set to false via INSTRUMENTATION_ENABLED=false to disable metrics and tracing
	Enabled bool

	// MetricsExporter specifies the metrics exporter type
	// Options: "prometheus", "otlp", "stdout" (default: "prometheus")
	MetricsExporter string

	// TracingExporter specifies the tracing exporter type
	// Options: "otlp", "stdout", "none" (default: "none")
	TracingExporter string

	// OTLPEndpoint is the OTLP collector endpoint, without protocol prefix
	// Example: "localhost:4318"
	OTLPEndpoint string

	// OTLPInsecure controls whether to use insecure HTTP for OTLP export.
	// Only for local development against unencrypted collectors.
	OTLPInsecure bool

	// TraceSamplingRate is the sampling rate for traces (0.0 to 1.0, default: 0.1)
	TraceSamplingRate float64

	// AuditLogging enables the credential lifecycle audit log (default: true)
	AuditLogging bool
}

// DefaultConfig returns a Config with sensible defaults based on environment variables.
func DefaultConfig() Config {
	return DefaultConfigFrom(os.Getenv)
}

// DefaultConfigFrom is DefaultConfig reading variables through getenv.
func DefaultConfigFrom(getenv func(string) string) Config {
	env := envLookup(getenv)
	return Config{
		ServiceName:       env.get("OTEL_SERVICE_NAME", "sheetsbridge"),
		ServiceVersion:    "unknown",
		ServiceInstanceID: env.get("OTEL_SERVICE_INSTANCE_ID", ""),
		K8sNamespace:      env.get("K8S_NAMESPACE", env.get("POD_NAMESPACE", "")),
		K8sPodName:        env.get("K8S_POD_NAME", env.get("HOSTNAME", "")),
		Enabled:           env.getBool("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:   env.get("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:   env.get("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:      env.get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:      env.getBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate: env.getFloat("OTEL_TRACES_SAMPLER_ARG", 0.1),
		AuditLogging:      env.getBool("AUDIT_LOGGING_ENABLED", true),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	validMetricsExporters := map[string]bool{ExporterPrometheus: true, ExporterOTLP: true, ExporterStdout: true}
	if c.MetricsExporter != "" && !validMetricsExporters[c.MetricsExporter] {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	validTracingExporters := map[string]bool{ExporterOTLP: true, ExporterStdout: true, ExporterNone: true}
	if c.TracingExporter != "" && !validTracingExporters[c.TracingExporter] {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.TracingExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
	}
	if c.MetricsExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
	}

	return nil
}

// Exporter type constants
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

type envLookup func(string) string

func (getenv envLookup) get(key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (getenv envLookup) getBool(key string, defaultValue bool) bool {
	if value := getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func (getenv envLookup) getFloat(key string, defaultValue float64) float64 {
	if value := getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

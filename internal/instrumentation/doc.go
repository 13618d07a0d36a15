// Package instrumentation provides OpenTelemetry instrumentation for the
// sheetsbridge service.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, route, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Drive, Sheets and OAuth token endpoint calls
//   - google_api_operation_duration_seconds: Histogram of those call durations
//
// OAuth Metrics:
//   - oauth_auth_total: Counter of authorization code exchanges by result
//   - oauth_token_refresh_total: Counter of refresh attempts by result
//
// Storage Metrics:
//   - token_store_operations_total: Counter of token store calls by backend, operation, status
//
// # Tracing
//
// Spans are created for routed HTTP requests and for every Google API call
// (google.<service>.<operation>).
//
// # Audit
//
// AuditLogger records credential lifecycle transitions (connected, refreshed,
// disconnected, invalidated) with hashed user ids.
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: sheetsbridge)
//   - AUDIT_LOGGING_ENABLED: credential audit log (default: true)
package instrumentation

package instrumentation

import (
	"context"
	"log/slog"

	"github.com/zaptalk/sheetsbridge/internal/logging"
)

// CredentialEvent names a lifecycle transition of a stored Google credential.
type CredentialEvent string

const (
	// CredentialConnected is emitted after a successful code exchange at callback.
	CredentialConnected CredentialEvent = "connected"

	// CredentialRefreshed is emitted after a successful refresh grant.
	CredentialRefreshed CredentialEvent = "refreshed"

	// CredentialDisconnected is emitted on an explicit disconnect request.
	CredentialDisconnected CredentialEvent = "disconnected"

	// CredentialInvalidated is emitted when a failed refresh forces deletion.
	CredentialInvalidated CredentialEvent = "invalidated"
)

// AuditLogger writes one structured record per credential lifecycle event.
// User ids are always hashed.
type AuditLogger struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditLogger returns an AuditLogger writing to logger. A nil logger uses slog.Default().
func NewAuditLogger(logger *slog.Logger, enabled bool) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:  logger.With(slog.String("audit", "credential")),
		enabled: enabled,
	}
}

// Record logs event for userID. reason is optional and should be short.
func (a *AuditLogger) Record(ctx context.Context, event CredentialEvent, userID, reason string) {
	if a == nil || !a.enabled {
		return
	}

	attrs := []slog.Attr{
		slog.String("event", string(event)),
		logging.UserHash(userID),
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}
	if reason != "" {
		attrs = append(attrs, slog.String("reason", reason))
	}

	a.logger.LogAttrs(ctx, slog.LevelInfo, "credential lifecycle", attrs...)
}

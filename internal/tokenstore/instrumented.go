package tokenstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/zaptalk/sheetsbridge/internal/instrumentation"
	"github.com/zaptalk/sheetsbridge/internal/logging"
)

// Instrumented records a metric and a log line for every store call.
// ErrNotFound from Fetch counts as success.
type Instrumented struct {
	next    Store
	backend string
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// NewInstrumented wraps next. metrics may be nil.
func NewInstrumented(next Store, backend string, metrics *instrumentation.Metrics, logger *slog.Logger) *Instrumented {
	if logger == nil {
		logger = slog.Default()
	}
	return &Instrumented{
		next:    next,
		backend: backend,
		metrics: metrics,
		logger:  logger.With(logging.Backend(backend)),
	}
}

func (s *Instrumented) record(ctx context.Context, op, userID string, err error) {
	status := instrumentation.StatusFromError(err)
	s.metrics.RecordTokenStoreOperation(ctx, s.backend, op, status)

	logger := logging.WithOperation(s.logger, "tokenstore."+op)
	if err != nil {
		logger.ErrorContext(ctx, "token store operation failed",
			logging.Status(status),
			logging.UserHash(userID),
			logging.Err(err))
		return
	}
	logger.DebugContext(ctx, "token store operation",
		logging.Status(status),
		logging.UserHash(userID))
}

// Save implements Store.
func (s *Instrumented) Save(ctx context.Context, userID string, grant Grant) error {
	err := s.next.Save(ctx, userID, grant)
	s.record(ctx, instrumentation.StoreOperationStore, userID, err)
	return err
}

// Fetch implements Store.
func (s *Instrumented) Fetch(ctx context.Context, userID string) (*Credential, error) {
	cred, err := s.next.Fetch(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		s.record(ctx, instrumentation.StoreOperationFetch, userID, nil)
	} else {
		s.record(ctx, instrumentation.StoreOperationFetch, userID, err)
	}
	return cred, err
}

// Delete implements Store.
func (s *Instrumented) Delete(ctx context.Context, userID string) error {
	err := s.next.Delete(ctx, userID)
	s.record(ctx, instrumentation.StoreOperationDelete, userID, err)
	return err
}

// Ping implements Store.
func (s *Instrumented) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

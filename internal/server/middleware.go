package server

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/zaptalk/sheetsbridge/internal/logging"
)

// RequestIDHeader carries the request correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

// validRequestID bounds what is accepted from clients.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

type ctxKey int

const loggerKey ctxKey = iota

// loggerFrom returns the request scoped logger, or fallback.
func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return fallback
}

// withRequestID honours a well-formed incoming X-Request-ID or mints one,
// echoes it and attaches a logger carrying it to the request context.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		logger := s.logger.With(logging.RequestID(id))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), loggerKey, logger)))
	})
}

// responseRecorder captures the status code and the matched route.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	route       string
}

func (rw *responseRecorder) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// setRoute records the matched route pattern for logs and metrics.
func setRoute(w http.ResponseWriter, route string) {
	if rw, ok := w.(*responseRecorder); ok {
		rw.route = route
	}
}

// withObservability logs every request once and records HTTP metrics.
// Unmatched requests are labelled "unmatched" to bound metric cardinality.
func (s *Server) withObservability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseRecorder{ResponseWriter: w, status: http.StatusOK, route: "unmatched"}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		s.deps.Metrics.RecordHTTPRequest(r.Context(), r.Method, rw.route, rw.status, duration)

		level := slog.LevelInfo
		if rw.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		loggerFrom(r.Context(), s.logger).LogAttrs(r.Context(), level, "request",
			slog.String("method", r.Method),
			logging.Route(rw.route),
			slog.Int(logging.KeyStatus, rw.status),
			slog.Duration(logging.KeyDuration, duration),
		)
	})
}

// withRecover turns a panic into a 500 with the panic message.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}

			err := panicError(p)
			loggerFrom(r.Context(), s.logger).ErrorContext(r.Context(), "panic in handler", logging.Err(err))

			if rw, ok := w.(*responseRecorder); ok && rw.wroteHeader {
				return
			}
			setCORSHeaders(w.Header())
			writeError(w, http.StatusInternalServerError, err.Error())
		}()
		next.ServeHTTP(w, r)
	})
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/zaptalk/sheetsbridge/internal/google"
	"github.com/zaptalk/sheetsbridge/internal/identity"
	"github.com/zaptalk/sheetsbridge/internal/instrumentation"
	"github.com/zaptalk/sheetsbridge/internal/logging"
	"github.com/zaptalk/sheetsbridge/internal/oauthstate"
	"github.com/zaptalk/sheetsbridge/internal/sheets"
)

// Server timeouts. The write timeout must cover the slowest outbound chain:
// identity check, token refresh and one Google API call.
const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
)

// Credentials manages the stored Google credential of a user.
type Credentials interface {
	AccessToken(ctx context.Context, userID string) (string, error)
	Connected(ctx context.Context, userID string) (bool, error)
	Connect(ctx context.Context, userID, code string) error
	Disconnect(ctx context.Context, userID string) error
}

// ConsentURLBuilder builds the Google consent URL for a state value.
type ConsentURLBuilder interface {
	AuthCodeURL(state string) string
}

// SheetsReader performs the upstream reads.
type SheetsReader interface {
	ListSpreadsheets(ctx context.Context, accessToken string) ([]sheets.Spreadsheet, error)
	ListSheetTabs(ctx context.Context, accessToken, spreadsheetID string) ([]sheets.Tab, error)
	ReadValues(ctx context.Context, accessToken, spreadsheetID, sheetName string, maxRows int) (*sheets.Values, error)
}

// Config holds the HTTP settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// BasePath prefixes every route, e.g. "/google-sheets". Empty serves at the root.
	BasePath string
}

// Dependencies are the collaborators the handlers call.
type Dependencies struct {
	Identity    identity.Authenticator
	Credentials Credentials
	Consent     ConsentURLBuilder
	State       oauthstate.Codec
	Sheets      SheetsReader

	// Health is optional; nil disables readiness dependency checks.
	Health *HealthChecker

	// Metrics and Logger are optional.
	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Server is the HTTP front of the integration.
type Server struct {
	cfg        Config
	deps       Dependencies
	table      []route
	logger     *slog.Logger
	httpServer *http.Server
}

// New validates deps and builds a Server.
func New(cfg Config, deps Dependencies) (*Server, error) {
	switch {
	case deps.Identity == nil:
		return nil, errors.New("identity resolver is required")
	case deps.Credentials == nil:
		return nil, errors.New("credential manager is required")
	case deps.Consent == nil:
		return nil, errors.New("consent URL builder is required")
	case deps.State == nil:
		return nil, errors.New("state codec is required")
	case deps.Sheets == nil:
		return nil, errors.New("sheets client is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Health == nil {
		deps.Health = NewHealthChecker(nil)
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.table = s.routes()
	return s, nil
}

// Handler returns the complete HTTP handler: health endpoints plus the
// route table under the base path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.deps.Health.RegisterHealthEndpoints(mux)
	mux.Handle("/", s.withRequestID(s.withObservability(s.withRecover(http.HandlerFunc(s.dispatch)))))
	return mux
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	s.logger.Info("starting HTTP server", "addr", s.cfg.Addr, "base_path", s.cfg.BasePath)
	return s.httpServer.ListenAndServe()
}

// Shutdown marks the server not ready and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Health.SetReady(false)
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// dispatch answers preflight, matches the route table, authenticates and
// runs the handler, mapping its error to a response.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w.Header())
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	path, ok := stripBasePath(s.cfg.BasePath, r.URL.EscapedPath())
	if !ok {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	rt, values := match(s.table, r.Method, path)
	if rt == nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	for name, v := range values {
		r.SetPathValue(name, v)
	}
	setRoute(w, rt.method+" "+rt.pattern)

	ctx, span := instrumentation.StartRouteSpan(r.Context(), rt.method+" "+rt.pattern)
	defer span.End()
	r = r.WithContext(ctx)

	var user *identity.User
	if rt.auth {
		u, err := s.deps.Identity.Resolve(ctx, r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		user = u
	}

	if err := rt.handle(w, r, user); err != nil {
		instrumentation.SetSpanError(span, err)
		s.writeHandlerError(ctx, w, err)
	}
}

func (s *Server) writeHandlerError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, google.ErrNotConnected) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Not connected to Google", Code: CodeNotConnected})
		return
	}

	loggerFrom(ctx, s.logger).ErrorContext(ctx, "request failed", logging.Err(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}

// panicError wraps a recovered panic value.
func panicError(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return fmt.Errorf("%v", p)
}

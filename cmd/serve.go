package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zaptalk/sheetsbridge/internal/config"
	"github.com/zaptalk/sheetsbridge/internal/google"
	"github.com/zaptalk/sheetsbridge/internal/identity"
	"github.com/zaptalk/sheetsbridge/internal/instrumentation"
	"github.com/zaptalk/sheetsbridge/internal/logging"
	"github.com/zaptalk/sheetsbridge/internal/oauthstate"
	"github.com/zaptalk/sheetsbridge/internal/server"
	"github.com/zaptalk/sheetsbridge/internal/sheets"
	"github.com/zaptalk/sheetsbridge/internal/tokenstore"
)

// metricsStartupWindow bounds the wait for the metrics listener.
const metricsStartupWindow = 5 * time.Second

func newServeCmd() *cobra.Command {
	cfg := config.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Google Sheets integration HTTP service",
		Long: `Start the HTTP service. All routes live under --base-path (default
/google-sheets):

  GET  /auth                     consent URL for the calling user
  GET  /callback                 OAuth redirect target, answers with a popup page
  GET  /status                   whether a usable access token can be produced
                                 (refreshes an expired one, drops a revoked credential)
  POST /disconnect               delete the stored credential
  GET  /spreadsheets             the user's 50 most recently modified spreadsheets
  GET  /sheets/:id               tabs of one spreadsheet
  GET  /data/:id/:sheetName      values of one tab (?maxRows=, default 1000)

Every route except /callback requires "Authorization: Bearer <token>",
verified against the identity backend at SUPABASE_URL.

Token store:
  --token-store postgres (default) keeps credentials in google_oauth_tokens,
  applying the embedded migrations on start-up unless
  --database-auto-migrate=false. valkey stores one hash per user, memory is
  for local development only. Set TOKEN_ENCRYPTION_KEY to encrypt tokens at
  rest.

OAuth state:
  Without STATE_SIGNING_KEY the state parameter is plain base64 JSON, as
  expected by existing clients. With a key it is a signed, expiring token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd.Flags(), cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cfg.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, err := logging.NewHandler(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfigFrom(cfg.Getenv)
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()
	metrics := provider.Metrics()

	store, closeStore, err := openTokenStore(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	oauthProvider := google.NewProvider(google.ProviderConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		Timeout:      cfg.Timeouts.GoogleToken,
	}, metrics)

	credentials := google.NewManager(store, oauthProvider,
		google.WithAudit(provider.Audit()),
		google.WithMetrics(metrics),
		google.WithLogger(logger),
	)

	stateCodec, err := oauthstate.New(cfg.State.SigningKey, cfg.State.TTL)
	if err != nil {
		return fmt.Errorf("invalid OAuth state settings: %w", err)
	}
	if cfg.State.SigningKey == "" {
		logger.Warn("OAuth state is unsigned; set STATE_SIGNING_KEY to bind callbacks to issued consent URLs")
	}

	srv, err := server.New(server.Config{
		Addr:     cfg.HTTPAddr,
		BasePath: cfg.BasePath,
	}, server.Dependencies{
		Identity:    identity.NewResolver(cfg.Supabase.URL, cfg.Supabase.AnonKey, cfg.Timeouts.Identity, logger),
		Credentials: credentials,
		Consent:     oauthProvider,
		State:       stateCodec,
		Sheets:      sheets.NewClient(sheets.Config{Timeout: cfg.Timeouts.GoogleAPI}, metrics),
		Health:      server.NewHealthChecker(store),
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled && provider.ServesPrometheus() {
		metricsServer, err := startMetricsServer(cfg.Metrics.Addr, provider, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	logger.Info("sheetsbridge starting",
		"version", version,
		"addr", cfg.HTTPAddr,
		"base_path", cfg.BasePath,
		"redirect_url", cfg.Google.RedirectURL,
		logging.Backend(cfg.Store.Backend))

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

// openTokenStore builds the configured backend, wrapped with encryption
// when a key is set and with instrumentation always. The returned func
// releases the backend's connections.
func openTokenStore(ctx context.Context, cfg *config.Config, metrics *instrumentation.Metrics, logger *slog.Logger) (tokenstore.Store, func(), error) {
	var (
		base    tokenstore.Store
		release = func() {}
	)

	switch cfg.Store.Backend {
	case config.StorePostgres:
		if cfg.Store.AutoMigrate {
			if err := tokenstore.Migrate(cfg.Store.DatabaseURL); err != nil {
				return nil, nil, err
			}
		}
		pool, err := tokenstore.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		base, release = tokenstore.NewPostgres(pool, cfg.Timeouts.Store), pool.Close

	case config.StoreValkey:
		v, err := tokenstore.NewValkey(tokenstore.ValkeyConfig{
			URL:        cfg.Store.ValkeyURL,
			Password:   cfg.Store.ValkeyPassword,
			DB:         cfg.Store.ValkeyDB,
			TLSEnabled: cfg.Store.ValkeyTLS,
			KeyPrefix:  cfg.Store.ValkeyKeyPrefix,
		}, cfg.Timeouts.Store)
		if err != nil {
			return nil, nil, err
		}
		base, release = v, v.Close

	case config.StoreMemory:
		logger.Warn("using the in-memory token store; credentials are lost on restart")
		base = tokenstore.NewMemory()

	default:
		return nil, nil, fmt.Errorf("unknown token store backend %q", cfg.Store.Backend)
	}

	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		release()
		return nil, nil, err
	}
	if key != nil {
		cipher, err := tokenstore.NewCipher(key)
		if err != nil {
			release()
			return nil, nil, err
		}
		base = tokenstore.NewEncrypted(base, cipher)
	} else if cfg.Store.Backend != config.StoreMemory {
		logger.Warn("tokens are stored unencrypted; set TOKEN_ENCRYPTION_KEY to encrypt them at rest")
	}

	return tokenstore.NewInstrumented(base, cfg.Store.Backend, metrics, logger), release, nil
}

// startMetricsServer starts the Prometheus endpoint and waits until it is
// listening or fails.
func startMetricsServer(addr string, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: provider,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	deadline := time.After(metricsStartupWindow)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-metricsErr:
			if err == nil {
				err = errors.New("metrics server exited")
			}
			return nil, fmt.Errorf("metrics server failed to start: %w", err)
		case <-deadline:
			return nil, errors.New("metrics server startup timed out")
		case <-ticker.C:
			if a := metricsServer.ListenAddr(); a != "" {
				logger.Info("metrics server started", "addr", a)
				return metricsServer, nil
			}
		}
	}
}

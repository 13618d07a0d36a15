package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/oauth2"

	"github.com/zaptalk/sheetsbridge/internal/instrumentation"
	"github.com/zaptalk/sheetsbridge/internal/logging"
	"github.com/zaptalk/sheetsbridge/internal/tokenstore"
)

// RefreshThreshold is the minimum remaining lifetime of a token handed out
// by Manager. Tokens closer to expiry are refreshed first so they cannot
// expire during the upstream call that follows.
const RefreshThreshold = 5 * time.Minute

// defaultExpiresIn is assumed when a token response carries no lifetime.
const defaultExpiresIn = 3600

// ErrNotConnected means no usable access token can be produced for the user:
// nothing is stored, there is no refresh token, or the refresh failed.
var ErrNotConnected = errors.New("not connected to Google")

// Grants is the subset of Provider used by Manager.
type Grants interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Manager owns the lifecycle of stored Google credentials.
type Manager struct {
	store   tokenstore.Store
	grants  Grants
	audit   *instrumentation.AuditLogger
	metrics *instrumentation.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithAudit sets the credential audit logger.
func WithAudit(a *instrumentation.AuditLogger) ManagerOption {
	return func(m *Manager) { m.audit = a }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *instrumentation.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager over store and grants.
func NewManager(store tokenstore.Store, grants Grants, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		grants: grants,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessToken returns an access token valid for at least RefreshThreshold.
//
// A stored token with enough lifetime left is returned without any network
// call. Otherwise the refresh token is used; on success the new token is
// stored (keeping the old refresh token unless Google issued a new one), on
// failure the credential is deleted, unless ctx ended first. ErrNotConnected
// is returned whenever no token can be produced.
func (m *Manager) AccessToken(ctx context.Context, userID string) (string, error) {
	cred, err := m.store.Fetch(ctx, userID)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return "", ErrNotConnected
	}
	if err != nil {
		return "", err
	}

	if cred.ExpiresAt.Sub(m.now()) >= RefreshThreshold {
		return cred.AccessToken, nil
	}

	if cred.RefreshToken == "" {
		m.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultNoRefresh)
		return "", ErrNotConnected
	}

	token, err := m.grants.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		// The caller went away; that says nothing about the refresh token.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("token refresh interrupted: %w", ctxErr)
		}
		m.invalidate(ctx, userID, err)
		return "", ErrNotConnected
	}

	grant := m.grantFromToken(token)
	if err := m.store.Save(ctx, userID, grant); err != nil {
		return "", fmt.Errorf("failed to store refreshed token: %w", err)
	}
	m.logStored(ctx, "access token refreshed", userID, grant)
	m.audit.Record(ctx, instrumentation.CredentialRefreshed, userID, "")
	return grant.AccessToken, nil
}

// invalidate deletes a credential whose refresh failed.
func (m *Manager) invalidate(ctx context.Context, userID string, cause error) {
	m.logger.WarnContext(ctx, "token refresh failed, removing credential",
		logging.UserHash(userID),
		logging.Err(cause))

	if err := m.store.Delete(ctx, userID); err != nil {
		m.logger.ErrorContext(ctx, "failed to remove credential after refresh failure",
			logging.UserHash(userID),
			logging.Err(err))
	}
	m.audit.Record(ctx, instrumentation.CredentialInvalidated, userID, ErrorDetail(cause))
}

// Connected reports whether an access token can currently be produced.
func (m *Manager) Connected(ctx context.Context, userID string) (bool, error) {
	_, err := m.AccessToken(ctx, userID)
	switch {
	case errors.Is(err, ErrNotConnected):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}

// Connect exchanges an authorization code and stores the resulting credential.
func (m *Manager) Connect(ctx context.Context, userID, code string) error {
	token, err := m.grants.Exchange(ctx, code)
	if err != nil {
		return err
	}
	grant := m.grantFromToken(token)
	if err := m.store.Save(ctx, userID, grant); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	m.logStored(ctx, "credential stored", userID, grant)
	m.audit.Record(ctx, instrumentation.CredentialConnected, userID, "")
	return nil
}

// Disconnect deletes the stored credential. It succeeds when none exists.
func (m *Manager) Disconnect(ctx context.Context, userID string) error {
	if err := m.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	m.audit.Record(ctx, instrumentation.CredentialDisconnected, userID, "")
	return nil
}

// logStored logs a saved grant with token contents masked.
func (m *Manager) logStored(ctx context.Context, msg, userID string, grant tokenstore.Grant) {
	m.logger.DebugContext(ctx, msg,
		logging.UserHash(userID),
		slog.String("access_token", logging.SanitizeToken(grant.AccessToken)),
		slog.String("refresh_token", logging.SanitizeToken(grant.RefreshToken)),
		slog.Int64("expires_in", grant.ExpiresIn))
}

// grantFromToken converts a token response into store input. The lifetime
// comes from expires_in when present, else from the computed expiry.
func (m *Manager) grantFromToken(t *oauth2.Token) tokenstore.Grant {
	expiresIn := t.ExpiresIn
	if expiresIn <= 0 && !t.Expiry.IsZero() {
		expiresIn = int64(math.Ceil(t.Expiry.Sub(m.now()).Seconds()))
	}
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	return tokenstore.Grant{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    expiresIn,
	}
}

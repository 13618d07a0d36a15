package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/zaptalk/sheetsbridge/internal/instrumentation"
)

// ProviderConfig holds the OAuth client registration.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint defaults to google.Endpoint.
	Endpoint oauth2.Endpoint

	// Timeout bounds each token endpoint call.
	Timeout time.Duration
}

// Provider performs the OAuth grants against Google's token endpoint.
type Provider struct {
	config  *oauth2.Config
	client  *http.Client
	metrics *instrumentation.Metrics
}

// NewProvider creates a Provider. metrics may be nil.
func NewProvider(cfg ProviderConfig, metrics *instrumentation.Metrics) *Provider {
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		client:  &http.Client{Timeout: cfg.Timeout},
		metrics: metrics,
	}
}

// AuthCodeURL returns the consent URL. It always asks for offline access and
// forces the consent screen so that Google issues a refresh token.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	start := time.Now()
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceOAuth, instrumentation.OperationExchangeCode)

	token, err := p.config.Exchange(p.httpContext(ctx), code)

	instrumentation.EndSpan(span, err)
	p.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceOAuth, instrumentation.OperationExchangeCode,
		instrumentation.StatusFromError(err), time.Since(start))
	if err != nil {
		p.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	p.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	return token, nil
}

// Refresh performs a refresh-token grant. The returned token carries an
// empty RefreshToken when Google did not issue a new one.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	start := time.Now()
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceOAuth, instrumentation.OperationRefreshToken)

	// An already-expired token forces the token source to hit the endpoint.
	token, err := p.config.TokenSource(p.httpContext(ctx), &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	}).Token()

	instrumentation.EndSpan(span, err)
	p.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceOAuth, instrumentation.OperationRefreshToken,
		instrumentation.StatusFromError(err), time.Since(start))
	if err != nil {
		p.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}
	p.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)

	// The token source copies the old refresh token forward when the
	// response omits one; report only what Google actually sent.
	if token.RefreshToken == refreshToken {
		token.RefreshToken = ""
	}
	return token, nil
}

func (p *Provider) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

// ErrorDetail extracts a human readable reason from a token endpoint error:
// error_description when present, else the error code, else err's text.
func ErrorDetail(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorDescription != "" {
			return re.ErrorDescription
		}
		if re.ErrorCode != "" {
			return re.ErrorCode
		}
	}
	return err.Error()
}

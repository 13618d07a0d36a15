// Package identity resolves the caller's bearer token to a user by asking
// the backend auth service who the token belongs to.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zaptalk/sheetsbridge/internal/logging"
)

// ErrUnauthorized is returned for a missing, malformed or rejected bearer
// token, and for any failure reaching the auth service.
var ErrUnauthorized = errors.New("unauthorized")

// maxBodySize caps how much of the auth service response is read.
const maxBodySize = 1 << 20

// User is the authenticated caller.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Authenticator resolves a raw Authorization header to a User.
type Authenticator interface {
	Resolve(ctx context.Context, authorization string) (*User, error)
}

// Resolver calls GET {baseURL}/auth/v1/user with the caller's token.
type Resolver struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// NewResolver creates a Resolver for the auth service at baseURL.
// timeout bounds each verification call.
func NewResolver(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		endpoint: strings.TrimRight(baseURL, "/") + "/auth/v1/user",
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Resolve returns the user owning the bearer token in authorization.
// Every failure maps to ErrUnauthorized; the cause is logged.
func (r *Resolver) Resolve(ctx context.Context, authorization string) (*User, error) {
	token, ok := bearerToken(authorization)
	if !ok {
		return nil, ErrUnauthorized
	}

	user, err := r.lookup(ctx, token)
	if err != nil {
		r.logger.DebugContext(ctx, "bearer token rejected", logging.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return user, nil
}

func (r *Resolver) lookup(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth service request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read auth service response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode auth service response: %w", err)
	}
	if user.ID == "" {
		return nil, errors.New("auth service returned no user id")
	}
	return &user, nil
}

// bearerToken extracts the token from "Bearer <token>". The scheme is
// matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

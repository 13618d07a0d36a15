// Package tokenstore persists one Google OAuth credential per user.
//
// Three backends implement Store: Memory (tests and single-instance
// development), Postgres (the google_oauth_tokens table) and Valkey (one hash
// per user). Every backend upserts on the user id and never clears a stored
// refresh token when a write omits one.
//
// Two decorators wrap any backend: Encrypted seals tokens with AES-256-GCM
// before they reach storage, and Instrumented records per-operation metrics.
package tokenstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Fetch when the user has no stored credential.
var ErrNotFound = errors.New("credential not found")

// Backend names, used as metric and log labels.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendValkey   = "valkey"
)

// Credential is the stored OAuth credential of one user.
type Credential struct {
	UserID       string
	AccessToken  string
	RefreshToken string // empty when the provider never issued one
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// Grant is the token material handed to Save, as returned by the token endpoint.
type Grant struct {
	AccessToken string
	// RefreshToken may be empty; the previously stored value is then kept.
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64
}

// Store is the credential persistence contract.
type Store interface {
	// Save upserts the credential for userID with expires_at = now + ExpiresIn.
	Save(ctx context.Context, userID string, grant Grant) error

	// Fetch returns the stored credential or ErrNotFound.
	Fetch(ctx context.Context, userID string) (*Credential, error)

	// Delete removes the credential. Deleting a missing credential is not an error.
	Delete(ctx context.Context, userID string) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// expiresAt computes the absolute expiry of a grant issued at now.
func expiresAt(now time.Time, expiresIn int64) time.Time {
	return now.Add(time.Duration(expiresIn) * time.Second)
}

package tokenstore

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"
)

// Hash fields of a stored credential.
const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
	fieldExpiresAt    = "expires_at"
	fieldUpdatedAt    = "updated_at"
)

// ValkeyConfig configures the Valkey connection.
type ValkeyConfig struct {
	// URL is the server address, e.g. "valkey.namespace.svc:6379".
	URL        string
	Password   string
	DB         int
	TLSEnabled bool
	// KeyPrefix namespaces every key written by the store.
	KeyPrefix string
}

// Valkey stores each credential as a hash at {prefix}google_oauth_tokens:{user_id}.
type Valkey struct {
	client  valkey.Client
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// NewValkey connects to Valkey. timeout bounds every command; zero disables it.
func NewValkey(cfg ValkeyConfig, timeout time.Duration) (*Valkey, error) {
	opts := valkey.ClientOption{
		InitAddress: []string{cfg.URL},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", cfg.URL, err)
	}
	return NewValkeyWithClient(client, cfg.KeyPrefix, timeout), nil
}

// NewValkeyWithClient wraps an existing client.
func NewValkeyWithClient(client valkey.Client, prefix string, timeout time.Duration) *Valkey {
	return &Valkey{client: client, prefix: prefix, timeout: timeout, now: time.Now}
}

func (v *Valkey) key(userID string) string {
	return v.prefix + "google_oauth_tokens:" + userID
}

func (v *Valkey) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, v.timeout)
}

// Save implements Store. HSET only touches the fields it names, so an omitted
// refresh token leaves the stored one in place.
func (v *Valkey) Save(ctx context.Context, userID string, grant Grant) error {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	now := v.now()
	cmd := v.client.B().Hset().Key(v.key(userID)).FieldValue().
		FieldValue(fieldAccessToken, grant.AccessToken).
		FieldValue(fieldExpiresAt, strconv.FormatInt(expiresAt(now, grant.ExpiresIn).Unix(), 10)).
		FieldValue(fieldUpdatedAt, strconv.FormatInt(now.Unix(), 10))
	if grant.RefreshToken != "" {
		cmd = cmd.FieldValue(fieldRefreshToken, grant.RefreshToken)
	}

	if err := v.client.Do(ctx, cmd.Build()).Error(); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Fetch implements Store.
func (v *Valkey) Fetch(ctx context.Context, userID string) (*Credential, error) {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	fields, err := v.client.Do(ctx, v.client.B().Hgetall().Key(v.key(userID)).Build()).AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credential: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	expires, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("credential has invalid %s: %w", fieldExpiresAt, err)
	}
	updated, _ := strconv.ParseInt(fields[fieldUpdatedAt], 10, 64)

	return &Credential{
		UserID:       userID,
		AccessToken:  fields[fieldAccessToken],
		RefreshToken: fields[fieldRefreshToken],
		ExpiresAt:    time.Unix(expires, 0),
		UpdatedAt:    time.Unix(updated, 0),
	}, nil
}

// Delete implements Store.
func (v *Valkey) Delete(ctx context.Context, userID string) error {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	if err := v.client.Do(ctx, v.client.B().Del().Key(v.key(userID)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// Ping implements Store.
func (v *Valkey) Ping(ctx context.Context) error {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()
	return v.client.Do(ctx, v.client.B().Ping().Build()).Error()
}

// Close releases the client connections.
func (v *Valkey) Close() {
	v.client.Close()
}

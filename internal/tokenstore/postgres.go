package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores credentials in the google_oauth_tokens table.
type Postgres struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	now     func() time.Time
}

// NewPostgres wraps an open pool. timeout bounds every statement; zero disables it.
func NewPostgres(pool *pgxpool.Pool, timeout time.Duration) *Postgres {
	return &Postgres{pool: pool, timeout: timeout, now: time.Now}
}

func (p *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}

const upsertCredential = `-- name: UpsertCredential
INSERT INTO google_oauth_tokens (user_id, access_token, refresh_token, expires_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
    access_token  = EXCLUDED.access_token,
    refresh_token = COALESCE(EXCLUDED.refresh_token, google_oauth_tokens.refresh_token),
    expires_at    = EXCLUDED.expires_at,
    updated_at    = EXCLUDED.updated_at
`

// Save implements Store. An empty refresh token is written as NULL, which the
// upsert resolves to the previously stored value.
func (p *Postgres) Save(ctx context.Context, userID string, grant Grant) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	now := p.now().UTC()
	var refresh *string
	if grant.RefreshToken != "" {
		refresh = &grant.RefreshToken
	}

	_, err := p.pool.Exec(ctx, upsertCredential,
		userID, grant.AccessToken, refresh, expiresAt(now, grant.ExpiresIn), now)
	if err != nil {
		return wrapPgError("save credential", err)
	}
	return nil
}

const getCredential = `-- name: GetCredential
SELECT user_id, access_token, refresh_token, expires_at, updated_at
FROM google_oauth_tokens
WHERE user_id = $1
`

// Fetch implements Store.
func (p *Postgres) Fetch(ctx context.Context, userID string) (*Credential, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	rows, _ := p.pool.Query(ctx, getCredential, userID)
	cred, err := pgx.CollectOneRow(rows, rowToCredential)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapPgError("fetch credential", err)
	}
	return &cred, nil
}

const deleteCredential = `-- name: DeleteCredential
DELETE FROM google_oauth_tokens
WHERE user_id = $1
`

// Delete implements Store.
func (p *Postgres) Delete(ctx context.Context, userID string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if _, err := p.pool.Exec(ctx, deleteCredential, userID); err != nil {
		return wrapPgError("delete credential", err)
	}
	return nil
}

// Ping implements Store.
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.pool.Ping(ctx)
}

func rowToCredential(row pgx.CollectableRow) (Credential, error) {
	var (
		c       Credential
		refresh *string
	)
	err := row.Scan(&c.UserID, &c.AccessToken, &refresh, &c.ExpiresAt, &c.UpdatedAt)
	if refresh != nil {
		c.RefreshToken = *refresh
	}
	return c, err
}

func wrapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return fmt.Errorf("failed to %s: table google_oauth_tokens is missing, run 'sheetsbridge migrate': %w", op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

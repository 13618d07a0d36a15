package tokenstore

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store. Credentials are lost on restart.
type Memory struct {
	mu    sync.RWMutex
	creds map[string]Credential
	now   func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		creds: make(map[string]Credential),
		now:   time.Now,
	}
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, userID string, grant Grant) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	cred := Credential{
		UserID:       userID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    expiresAt(now, grant.ExpiresIn),
		UpdatedAt:    now,
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = m.creds[userID].RefreshToken
	}
	m.creds[userID] = cred
	return nil
}

// Fetch implements Store.
func (m *Memory) Fetch(_ context.Context, userID string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.creds[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &cred, nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.creds, userID)
	return nil
}

// Ping implements Store.
func (m *Memory) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored credentials.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.creds)
}

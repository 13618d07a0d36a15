package tokenstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// Cipher seals token strings with AES-256-GCM.
//
// The output is base64(nonce || ciphertext || tag) with a fresh random nonce
// per call, so sealing the same token twice yields different ciphertexts.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a 32 byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes (256 bits), got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext. The empty string stays empty so that an omitted
// refresh token is still recognisable as omitted by the backend.
func (c *Cipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (c *Cipher) Open(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// GenerateKey returns a random 32 byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return key, nil
}

// Encrypted seals access and refresh tokens before handing them to the
// wrapped Store, and opens them on Fetch.
type Encrypted struct {
	next   Store
	cipher *Cipher
}

// NewEncrypted wraps next with token encryption.
func NewEncrypted(next Store, c *Cipher) *Encrypted {
	return &Encrypted{next: next, cipher: c}
}

// Save implements Store.
func (e *Encrypted) Save(ctx context.Context, userID string, grant Grant) error {
	access, err := e.cipher.Seal(grant.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refresh, err := e.cipher.Seal(grant.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	grant.AccessToken, grant.RefreshToken = access, refresh
	return e.next.Save(ctx, userID, grant)
}

// Fetch implements Store.
func (e *Encrypted) Fetch(ctx context.Context, userID string) (*Credential, error) {
	cred, err := e.next.Fetch(ctx, userID)
	if err != nil {
		return nil, err
	}

	if cred.AccessToken, err = e.cipher.Open(cred.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if cred.RefreshToken, err = e.cipher.Open(cred.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return cred, nil
}

// Delete implements Store.
func (e *Encrypted) Delete(ctx context.Context, userID string) error {
	return e.next.Delete(ctx, userID)
}

// Ping implements Store.
func (e *Encrypted) Ping(ctx context.Context) error {
	return e.next.Ping(ctx)
}

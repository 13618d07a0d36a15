package tokenstore

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	c, err := NewCipher(key)
	require.NoError(t, err)
	return c
}

func TestCipher_SealOpen(t *testing.T) {
	c := newTestCipher(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"access token", "ya29.a0AfH6SMBexample"},
		{"refresh token", "1//0gexample-refresh"},
		{"special chars", "token!@#$%^&*()_+-={}[]|:;<>?,./"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := c.Seal(tt.plaintext)
			require.NoError(t, err)

			if tt.plaintext == "" {
				assert.Empty(t, sealed)
				return
			}
			assert.NotEqual(t, tt.plaintext, sealed)
			_, err = base64.StdEncoding.DecodeString(sealed)
			assert.NoError(t, err, "sealed value should be base64")

			opened, err := c.Open(sealed)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, opened)
		})
	}
}

func TestCipher_NonceIsRandom(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Seal("same")
	require.NoError(t, err)
	b, err := c.Seal("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCipher_Errors(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	assert.Error(t, err)

	c := newTestCipher(t)
	other := newTestCipher(t)

	sealed, err := c.Seal("secret")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.Error(t, err, "wrong key must fail authentication")

	_, err = c.Open("not-base64!")
	assert.Error(t, err)

	_, err = c.Open(base64.StdEncoding.EncodeToString([]byte("abc")))
	assert.Error(t, err, "too short")
}

func TestEncrypted_Contract(t *testing.T) {
	runStoreContract(t, NewEncrypted(NewMemory(), newTestCipher(t)))
}

func TestEncrypted_StoresCiphertext(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()
	store := NewEncrypted(backend, newTestCipher(t))

	require.NoError(t, store.Save(ctx, "U1", Grant{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600}))

	raw, err := backend.Fetch(ctx, "U1")
	require.NoError(t, err)
	assert.NotEqual(t, "access", raw.AccessToken)
	assert.NotEqual(t, "refresh", raw.RefreshToken)

	cred, err := store.Fetch(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "access", cred.AccessToken)
	assert.Equal(t, "refresh", cred.RefreshToken)
}

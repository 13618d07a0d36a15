package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startValkey(t *testing.T) *Valkey {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping valkey container test in short mode")
	}

	container, err := testcontainers.GenericContainer(t.Context(), testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "valkey/valkey:8-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "failed to start valkey container")

	endpoint, err := container.Endpoint(t.Context(), "")
	require.NoError(t, err)

	store, err := NewValkey(ValkeyConfig{URL: endpoint, KeyPrefix: "test:"}, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestValkey_Contract(t *testing.T) {
	runStoreContract(t, startValkey(t))
}

func TestValkey_KeyLayout(t *testing.T) {
	store := startValkey(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "U1", Grant{AccessToken: "a", ExpiresIn: 60}))

	fields, err := store.client.Do(ctx, store.client.B().Hgetall().Key("test:google_oauth_tokens:U1").Build()).AsStrMap()
	require.NoError(t, err)
	assert.Equal(t, "a", fields[fieldAccessToken])
	assert.NotContains(t, fields, fieldRefreshToken)
}

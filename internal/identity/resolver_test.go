package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestResolver_Resolve(t *testing.T) {
	srv := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"U1","email":"u1@example.com","role":"authenticated"}`))
	})

	r := NewResolver(srv.URL+"/", "anon-key", time.Second, nil)

	user, err := r.Resolve(context.Background(), "Bearer good")
	require.NoError(t, err)
	assert.Equal(t, "U1", user.ID)
	assert.Equal(t, "u1@example.com", user.Email)

	_, err = r.Resolve(context.Background(), "Bearer bad")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestResolver_MissingHeader(t *testing.T) {
	called := false
	srv := newAuthServer(t, func(w http.ResponseWriter, _ *http.Request) {
		called = true
	})
	r := NewResolver(srv.URL, "anon-key", time.Second, nil)

	for _, header := range []string{"", "Bearer", "Bearer   ", "Basic dXNlcjpwYXNz", "good"} {
		_, err := r.Resolve(context.Background(), header)
		assert.ErrorIs(t, err, ErrUnauthorized, "header %q", header)
	}
	assert.False(t, called, "auth service must not be called without a bearer token")
}

func TestResolver_ServiceFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}},
		{"no user id", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"email":"x@example.com"}`))
		}},
		{"slow", func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"id":"U1"}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAuthServer(t, tt.handler)
			r := NewResolver(srv.URL, "anon-key", 50*time.Millisecond, nil)

			_, err := r.Resolve(context.Background(), "Bearer token")
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"  Bearer  abc  ", "abc", true},
		{"Bearer", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}

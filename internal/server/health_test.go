package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func serveHealth(t *testing.T, h *HealthChecker, path string) (int, HealthResponse) {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterHealthEndpoints(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker(pingerFunc(func(context.Context) error { return errors.New("down") }))
	h.SetReady(false)

	code, resp := serveHealth(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, code, "liveness ignores dependencies")
	assert.Equal(t, healthStatusOK, resp.Status)
}

func TestHealthChecker_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		store      Pinger
		ready      bool
		wantCode   int
		wantChecks map[string]string
	}{
		{
			name:       "no store",
			ready:      true,
			wantCode:   http.StatusOK,
			wantChecks: map[string]string{"ready": healthStatusOK},
		},
		{
			name:       "healthy store",
			store:      pingerFunc(func(context.Context) error { return nil }),
			ready:      true,
			wantCode:   http.StatusOK,
			wantChecks: map[string]string{"ready": healthStatusOK, "token_store": healthStatusOK},
		},
		{
			name:       "failing store",
			store:      pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
			ready:      true,
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: map[string]string{"ready": healthStatusOK, "token_store": healthStatusFailing},
		},
		{
			name:       "shutting down",
			ready:      false,
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: map[string]string{"ready": healthStatusNotReady},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker(tt.store)
			h.SetReady(tt.ready)

			code, resp := serveHealth(t, h, "/readyz")
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantChecks, resp.Checks)
		})
	}
}

func TestHealthChecker_Detailed(t *testing.T) {
	h := NewHealthChecker(pingerFunc(func(context.Context) error { return nil }))

	mux := http.NewServeMux()
	h.RegisterHealthEndpoints(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, healthStatusOK, body["status"])
	assert.NotEmpty(t, body["uptime"])
}

func TestServer_ShutdownMarksNotReady(t *testing.T) {
	h := NewHealthChecker(nil)
	srv, err := New(Config{}, Dependencies{
		Identity:    &fakeIdentity{},
		Credentials: &stubCredentials{},
		Consent:     stubConsent{},
		State:       expiredState{},
		Sheets:      &fakeSheets{},
		Health:      h,
	})
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.False(t, h.IsReady())
}

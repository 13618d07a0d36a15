package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestWithOperation(t *testing.T) {
	logger := slog.Default()
	result := WithOperation(logger, "sheets.read")
	if result == nil {
		t.Error("WithOperation returned nil")
	}
}

func TestAttrHelpers(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"operation", Operation("sheets.read"), KeyOperation, "sheets.read"},
		{"route", Route("GET /data/:id/:sheetName"), KeyRoute, "GET /data/:id/:sheetName"},
		{"request id", RequestID("req-1"), KeyRequestID, "req-1"},
		{"backend", Backend("postgres"), KeyBackend, "postgres"},
		{"status", Status(StatusSuccess), KeyStatus, StatusSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if tt.attr.Value.String() != tt.wantVal {
				t.Errorf("value = %q, want %q", tt.attr.Value.String(), tt.wantVal)
			}
		})
	}
}

func TestErr(t *testing.T) {
	err := errors.New("test error")
	attr := Err(err)
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "test error" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "test error")
	}

	// Empty Group has empty key
	attr = Err(nil)
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty string (empty group)", attr.Key)
	}
}

func TestAnonymizeUserID(t *testing.T) {
	tests := []struct {
		userID   string
		wantLen  int
		hasValue bool
	}{
		{"3f1b2c4d-0000-4000-8000-000000000001", 21, true}, // "user:" + 16 hex chars
		{"U1", 21, true},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			result := AnonymizeUserID(tt.userID)
			if tt.hasValue {
				if len(result) != tt.wantLen {
					t.Errorf("AnonymizeUserID(%q) length = %d, want %d", tt.userID, len(result), tt.wantLen)
				}
				if !strings.HasPrefix(result, "user:") {
					t.Errorf("AnonymizeUserID(%q) should start with 'user:', got %q", tt.userID, result)
				}
			} else if result != "" {
				t.Errorf("AnonymizeUserID(%q) = %q, want empty string", tt.userID, result)
			}
		})
	}

	if AnonymizeUserID("U1") != AnonymizeUserID("U1") {
		t.Error("AnonymizeUserID should return deterministic results")
	}
	if AnonymizeUserID("U1") == AnonymizeUserID("U2") {
		t.Error("Different user ids should produce different hashes")
	}
}

func TestUserHash(t *testing.T) {
	attr := UserHash("U1")
	if attr.Key != KeyUserHash {
		t.Errorf("UserHash key = %q, want %q", attr.Key, KeyUserHash)
	}
	if strings.Contains(attr.Value.String(), "U1") {
		t.Errorf("UserHash leaked raw user id: %q", attr.Value.String())
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"", "<empty>"},
		{"abc123", "[token:6 chars]"},
		{"ya29.a0AfH6SMBexample", "[token:21 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := SanitizeToken(tt.token)
			if result != tt.expected {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, result, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewHandler(t *testing.T) {
	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		h, err := NewHandler(&buf, FormatJSON, "info")
		if err != nil {
			t.Fatalf("NewHandler() error = %v", err)
		}
		slog.New(h).Info("hello", Operation("test"))

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
		}
		if entry[KeyOperation] != "test" {
			t.Errorf("operation = %v, want test", entry[KeyOperation])
		}
	})

	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		h, err := NewHandler(&buf, FormatText, "warn")
		if err != nil {
			t.Fatalf("NewHandler() error = %v", err)
		}
		slog.New(h).Info("dropped")
		if buf.Len() != 0 {
			t.Errorf("info message should be filtered at warn level, got %q", buf.String())
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := NewHandler(&bytes.Buffer{}, "xml", "info")
		if err == nil {
			t.Error("NewHandler() expected error for unknown format")
		}
	})
}

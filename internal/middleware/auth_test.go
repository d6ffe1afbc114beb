package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/pathrpg/engine/internal/auth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func TestAuth(t *testing.T) {
	tokens := auth.NewTokens("test-secret", time.Hour)
	signed, err := tokens.Issue(42, "alice")
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	otherTokens := auth.NewTokens("other-secret", time.Hour)
	forged, err := otherTokens.Issue(42, "alice")
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	var seen *auth.Identity
	handler := Auth(tokens, testLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{"valid token", "Bearer " + signed, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc123", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"forged token", "Bearer " + forged, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/v1/game", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if tt.expectedStatus == http.StatusOK {
				if seen == nil || seen.UserID != "42" || seen.Username != "alice" {
					t.Errorf("Expected identity injected, got %+v", seen)
				}
			} else if seen != nil {
				t.Error("Handler must not run for rejected requests")
			}
		})
	}
}

func TestIdentityFrom_Absent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := IdentityFrom(req.Context()); id != nil {
		t.Errorf("Expected nil identity outside authenticated routes, got %+v", id)
	}
}

package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pathrpg/engine/internal/auth"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityFrom returns the verified identity stored in the request
// context, or nil outside an authenticated route.
func IdentityFrom(ctx context.Context) *auth.Identity {
	id, _ := ctx.Value(identityKey).(*auth.Identity)
	return id
}

// Auth verifies the Bearer token on every request and injects the
// resolved identity into the request context. Requests without a valid
// token are rejected with 401.
func Auth(tokens *auth.Tokens, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			unauthorized(w, "Missing bearer token")
			return
		}

		identity, err := tokens.Verify(tokenString)
		if err != nil {
			logger.Debug("Rejected bearer token", "error", err)
			unauthorized(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

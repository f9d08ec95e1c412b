package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-identity-sync/internal/domain"
)

type contextKey string

const IdentityKey contextKey = "identity"

// TokenVerifier is the slice of the token service the middleware needs.
type TokenVerifier interface {
	Verify(ctx context.Context, bearerToken string) (*domain.CanonicalIdentity, error)
}

// Auth returns middleware that introspects the Bearer token with the
// identity provider and injects the canonical identity into context. Token
// validity is never cached, so every request pays one provider round trip.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, `{"error":"missing or invalid authorization header"}`, http.StatusUnauthorized)
				return
			}
			identity, err := verifier.Verify(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				if errors.Is(err, domain.ErrProviderUnavailable) {
					http.Error(w, `{"error":"identity provider unavailable"}`, http.StatusServiceUnavailable)
					return
				}
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext extracts the verified identity from the request context.
func IdentityFromContext(ctx context.Context) (*domain.CanonicalIdentity, bool) {
	id, ok := ctx.Value(IdentityKey).(*domain.CanonicalIdentity)
	return id, ok
}

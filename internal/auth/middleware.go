package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/velric/velric-server/internal/model"
)

// UnauthorizedMessage is the fixed 401 body text. It never says which
// strategy came close.
const UnauthorizedMessage = "Unauthorized. Please provide a valid authentication token."

type contextKey string

const principalKey contextKey = "principal"

// RequireAuth rejects requests without a resolvable bearer token with 401
// and stores the principal in the context otherwise.
func RequireAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := authenticateRequest(r, a)
			if !ok {
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// OptionalAuth attaches the principal when one resolves and lets anonymous
// requests through untouched.
func OptionalAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := authenticateRequest(r, a); ok {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal is exported for handler tests.
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns (nil, false) for anonymous requests.
func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*model.Principal)
	return p, ok && p != nil
}

// BearerToken extracts <token> from "Authorization: Bearer <token>". It
// returns "" for a missing header, another scheme or an empty token.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func authenticateRequest(r *http.Request, a Authenticator) (*model.Principal, bool) {
	token := BearerToken(r)
	if token == "" {
		return nil, false
	}
	return a.Authenticate(r.Context(), token)
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   UnauthorizedMessage,
	})
}

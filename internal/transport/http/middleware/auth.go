package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtinfra "github.com/agency-backoffice/internal/infrastructure/jwt"
)

type contextKey string

const claimsKey contextKey = "claims"

// Verifier checks a bearer token and returns its claims.
type Verifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

// Auth returns middleware that validates the Bearer JWT and injects claims into context.
func Auth(v Verifier) func(http.Handler) http.Handler {
	return authenticate(v, false)
}

// AuthQuery is Auth that also accepts the token as ?token=. Browsers cannot
// set headers on a websocket handshake.
func AuthQuery(v Verifier) func(http.Handler) http.Handler {
	return authenticate(v, true)
}

func authenticate(v Verifier, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearer(r)
			if !ok && allowQuery {
				tokenStr = r.URL.Query().Get("token")
				ok = tokenStr != ""
			}
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			claims, err := v.Verify(tokenStr)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return tok, tok != ""
}

// WithClaims stores claims in ctx the way Auth does.
func WithClaims(ctx context.Context, c *jwtinfra.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*jwtinfra.Claims)
	return c, ok
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can read or overwrite the
// identity stored in a request context.
type contextKey string

const identityKey contextKey = "identity"

// TokenCookie is the cookie RequireAuth falls back to when no Authorization
// header is sent.
const TokenCookie = "token"

var errNoToken = errors.New("auth: no token in request")

// RequireAuth rejects requests without a valid access token with 401 and
// stores the caller's Identity in the context for the next handler.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns one that wraps it. Chi runs
// the chain as req → M1 → M2 → Handler → M2 → M1 → resp.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := extractIdentity(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", "Bearer")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`)) //nolint:errcheck
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated caller, or (nil, false) for
// an anonymous request.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// extractIdentity reads "Authorization: Bearer <jwt>", or the token cookie
// when the header is absent, and validates it.
func extractIdentity(r *http.Request, tokens *TokenService) (*Identity, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return nil, errNoToken
		}
		return tokens.Validate(strings.TrimSpace(token))
	}

	cookie, err := r.Cookie(TokenCookie)
	if err != nil {
		return nil, errNoToken
	}
	return tokens.Validate(cookie.Value)
}

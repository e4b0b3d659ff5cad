package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/abhayc-main/next-starter/pkg/errors"
	"github.com/abhayc-main/next-starter/pkg/httputil"
)

type contextKeyType string

const principalKey contextKeyType = "principal"

// SessionCookie is the cookie a browser session token is stored in.
const SessionCookie = "session_token"

// Principal is the authenticated caller extracted from a session token.
type Principal struct {
	AccountID string
	Email     string
}

// TokenValidator validates a bearer token and returns its principal.
type TokenValidator func(token string) (*Principal, error)

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// SessionToken returns the bearer token, falling back to the session cookie.
func SessionToken(r *http.Request) (string, bool) {
	if token, ok := BearerToken(r); ok {
		return token, true
	}
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Auth rejects requests without a valid session token and stores the
// principal in the request context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := SessionToken(r)
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized("missing or malformed authorization header"), nil)
				return
			}

			p, err := validate(token)
			if err != nil || p == nil || p.AccountID == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("invalid or expired session"), nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal set by Auth, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// AccountIDFromContext returns the authenticated account ID or "".
func AccountIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.AccountID
	}
	return ""
}

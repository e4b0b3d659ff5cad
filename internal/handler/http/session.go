package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abhayc-main/next-starter/internal/service"
	"github.com/abhayc-main/next-starter/pkg/middleware"
)

// setSessionCookie stores the session token in an HttpOnly cookie so browser
// clients do not have to handle it.
func setSessionCookie(w http.ResponseWriter, s service.IssuedSession, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.Expires,
		MaxAge:   int(time.Until(s.Expires).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// oauthCookiePath scopes state cookies to the OAuth routes.
const oauthCookiePath = "/api/v1/auth/oauth"

func stateCookieName(provider string) string {
	return "oauth_state_" + provider
}

// setStateCookie binds an OAuth state to this browser. Lax is required so
// the cookie survives the provider's top-level redirect back.
func setStateCookie(w http.ResponseWriter, provider, state string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName(provider),
		Value:    state,
		Path:     oauthCookiePath,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func stateFromCookie(r *http.Request, provider string) (string, bool) {
	c, err := r.Cookie(stateCookieName(provider))
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func clearStateCookie(w http.ResponseWriter, provider string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName(provider),
		Value:    "",
		Path:     oauthCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// safeRedirect returns from when it is a same-site relative path and def
// otherwise.
func safeRedirect(from, def string) string {
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return def
	}
	u, err := url.Parse(from)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return def
	}
	return from
}

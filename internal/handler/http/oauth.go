package http

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abhayc-main/next-starter/internal/oauth"
)

// OAuthFlow runs provider sign-in. *oauth.Flow implements it.
type OAuthFlow interface {
	Begin(ctx context.Context, provider, returnTo string) (oauth.Authorization, error)
	Complete(ctx context.Context, provider, code, state string) (oauth.Callback, error)
}

// OAuthHandler handles the provider redirect and callback.
type OAuthHandler struct {
	flow          OAuthFlow
	service       AccountService
	redirect      string
	stateTTL      time.Duration
	secureCookies bool
	logger        *slog.Logger
}

// NewOAuthHandler creates a new OAuth HTTP handler. stateTTL bounds the
// lifetime of the state cookie and defaults to ten minutes.
func NewOAuthHandler(flow OAuthFlow, svc AccountService, redirect string, stateTTL time.Duration, secureCookies bool, logger *slog.Logger) *OAuthHandler {
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	return &OAuthHandler{
		flow:          flow,
		service:       svc,
		redirect:      redirect,
		stateTTL:      stateTTL,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// Login handles GET /api/v1/auth/oauth/{provider}/login
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	returnTo := safeRedirect(r.URL.Query().Get("from"), h.redirect)

	provider := chi.URLParam(r, "provider")

	authz, err := h.flow.Begin(r.Context(), provider, returnTo)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	setStateCookie(w, provider, authz.State, h.stateTTL, h.secureCookies)
	http.Redirect(w, r, authz.URL, http.StatusFound)
}

// Callback handles GET /api/v1/auth/oauth/{provider}/callback
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	provider := chi.URLParam(r, "provider")

	if e := q.Get("error"); e != "" {
		h.logger.WarnContext(r.Context(), "provider denied sign-in",
			slog.String("provider", provider),
			slog.String("error", e),
		)
		writeError(w, r, oauth.ErrExchangeFailed, h.logger)
		return
	}

	// The state must come back to the browser that started the flow.
	state := q.Get("state")
	bound, ok := stateFromCookie(r, provider)
	clearStateCookie(w, provider, h.secureCookies)
	if !ok || subtle.ConstantTimeCompare([]byte(bound), []byte(state)) != 1 {
		writeError(w, r, oauth.ErrInvalidState, h.logger)
		return
	}

	cb, err := h.flow.Complete(r.Context(), provider, q.Get("code"), state)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	result, err := h.service.SignInWithIdentity(r.Context(), cb.Identity)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	setSessionCookie(w, result.Session, h.secureCookies)
	http.Redirect(w, r, safeRedirect(cb.ReturnTo, h.redirect), http.StatusFound)
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/abhayc-main/next-starter/internal/auth"
	"github.com/abhayc-main/next-starter/internal/domain"
	"github.com/abhayc-main/next-starter/internal/service"
	apperrors "github.com/abhayc-main/next-starter/pkg/errors"
	"github.com/abhayc-main/next-starter/pkg/httputil"
	"github.com/abhayc-main/next-starter/pkg/middleware"
)

const maxBodyBytes = 1 << 20

// AccountService is the service surface the HTTP layer uses.
// *service.AccountService implements it.
type AccountService interface {
	Register(ctx context.Context, input service.CredentialInput) (*service.AuthResult, error)
	Login(ctx context.Context, input service.LoginInput) (*service.AuthResult, error)
	SignInWithIdentity(ctx context.Context, identity domain.Identity) (*service.AuthResult, error)
	RefreshSession(ctx context.Context, prev domain.Claims) (service.IssuedSession, error)
	Session(claims domain.Claims, expires time.Time) domain.Session
	Profile(ctx context.Context, accountID string) (*domain.Account, error)
	UpdateProfile(ctx context.Context, accountID string, input service.ProfileInput) (*domain.Account, error)
}

// SessionParser validates session tokens. *auth.JWTManager implements it.
type SessionParser interface {
	Parse(token string) (*auth.SessionClaims, error)
}

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service       AccountService
	sessions      SessionParser
	redirect      string
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler. redirect is the default
// post-login destination.
func NewAuthHandler(svc AccountService, sessions SessionParser, redirect string, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:       svc,
		sessions:      sessions,
		redirect:      redirect,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// --- Response types ---

// AuthResponse is returned by every endpoint that issues a session.
type AuthResponse struct {
	Account    *domain.Account `json:"account,omitempty"`
	Token      string          `json:"token"`
	Session    domain.Session  `json:"session"`
	RedirectTo string          `json:"redirect_to,omitempty"`
}

func (h *AuthHandler) authResponse(r *http.Request, result *service.AuthResult) AuthResponse {
	return AuthResponse{
		Account:    result.Account,
		Token:      result.Session.Token,
		Session:    h.service.Session(result.Session.Claims, result.Session.Expires),
		RedirectTo: safeRedirect(r.URL.Query().Get("from"), h.redirect),
	}
}

// --- Handlers ---

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.CredentialInput
	if err := httputil.DecodeJSON(w, r, &req, maxBodyBytes); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	result, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	setSessionCookie(w, result.Session, h.secureCookies)
	httputil.WriteData(w, http.StatusCreated, h.authResponse(r, result))
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := httputil.DecodeJSON(w, r, &req, maxBodyBytes); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	setSessionCookie(w, result.Session, h.secureCookies)
	httputil.WriteData(w, http.StatusOK, h.authResponse(r, result))
}

// Refresh handles POST /api/v1/auth/session/refresh. The claims are rebuilt
// from the stored account and a new token is issued.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.currentClaims(w, r)
	if !ok {
		return
	}

	session, err := h.service.RefreshSession(r.Context(), claims.Claims())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	setSessionCookie(w, session, h.secureCookies)
	httputil.WriteData(w, http.StatusOK, AuthResponse{
		Token:   session.Token,
		Session: h.service.Session(session.Claims, session.Expires),
	})
}

// Session handles GET /api/v1/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.currentClaims(w, r)
	if !ok {
		return
	}
	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	httputil.WriteData(w, http.StatusOK, h.service.Session(claims.Claims(), expires))
}

// Logout handles POST /api/v1/auth/logout by clearing the session cookie.
// Tokens are not revoked.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) currentClaims(w http.ResponseWriter, r *http.Request) (*auth.SessionClaims, bool) {
	token, ok := middleware.SessionToken(r)
	if !ok {
		writeError(w, r, apperrors.Unauthorized("no active session"), h.logger)
		return nil, false
	}
	claims, err := h.sessions.Parse(token)
	if err != nil {
		writeError(w, r, err, h.logger)
		return nil, false
	}
	return claims, true
}

package oauth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/abhayc-main/next-starter/internal/domain"
)

const (
	googleIssuer       = "https://accounts.google.com"
	googleScopeEmail   = "email"
	googleScopeProfile = "profile"
)

// GoogleConfig holds the configuration for the Google provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Google signs users in with Google's OpenID Connect endpoint.
type Google struct {
	cfg      *oauth2.Config
	verifier *oidc.IDTokenVerifier
	client   *http.Client
}

var _ Provider = (*Google)(nil)

type googleClaims struct {
	Sub      string `json:"sub"`
	Email    string `json:"email"`
	Verified bool   `json:"email_verified"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
}

// NewGoogle discovers Google's OIDC configuration and creates the provider.
// client is used for discovery, key fetches and code exchange; nil means
// http.DefaultClient.
func NewGoogle(ctx context.Context, cfg GoogleConfig, client *http.Client) (*Google, error) {
	// The key set keeps the discovery context for later JWKS refreshes, so it
	// must outlive ctx's deadline.
	dctx := context.WithoutCancel(ctx)
	if client != nil {
		dctx = oidc.ClientContext(dctx, client)
	}
	p, err := oidc.NewProvider(dctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("new oidc provider: %w", err)
	}
	g := newGoogle(cfg, endpoints.Google, p.Verifier(&oidc.Config{ClientID: cfg.ClientID}))
	g.client = client
	return g, nil
}

func newGoogle(cfg GoogleConfig, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier) *Google {
	return &Google{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, googleScopeProfile, googleScopeEmail},
			Endpoint:     endpoint,
		},
		verifier: verifier,
	}
}

func (g *Google) Name() string { return "google" }

func (g *Google) AuthCodeURL(state, nonce string) string {
	return g.cfg.AuthCodeURL(state, oidc.Nonce(nonce))
}

// Exchange redeems code and verifies the returned ID token.
func (g *Google) Exchange(ctx context.Context, code, nonce string) (domain.Identity, error) {
	if g.client != nil {
		ctx = oidc.ClientContext(ctx, g.client)
	}
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return domain.Identity{}, fmt.Errorf("%w: token response has no id_token", ErrExchangeFailed)
	}
	idTok, err := g.verifier.Verify(ctx, raw)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: verify id token: %v", ErrExchangeFailed, err)
	}
	if idTok.Nonce != nonce {
		return domain.Identity{}, fmt.Errorf("%w: nonce mismatch", ErrExchangeFailed)
	}

	var claims googleClaims
	if err := idTok.Claims(&claims); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: read claims: %v", ErrExchangeFailed, err)
	}
	return g.identity(claims), nil
}

func (g *Google) identity(c googleClaims) domain.Identity {
	return domain.Identity{
		Provider:      g.Name(),
		Subject:       c.Sub,
		Email:         c.Email,
		Name:          optional(c.Name),
		Picture:       optional(c.Picture),
		EmailVerified: c.Verified,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

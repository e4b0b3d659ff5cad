package domain

import "time"

// Claims is the identity projection carried inside a session token.
type Claims struct {
	ID      string  `json:"id,omitempty"`
	Name    *string `json:"name,omitempty"`
	Email   string  `json:"email"`
	Picture *string `json:"picture,omitempty"`
}

// ClaimsFromAccount projects a stored account onto session claims.
func ClaimsFromAccount(a *Account) Claims {
	return Claims{
		ID:      a.ID,
		Name:    a.Name,
		Email:   a.Email,
		Picture: a.Image,
	}
}

// Identity is what an authentication event hands to the claims builder:
// the verified account for credential sign-in, or the provider profile for
// OAuth sign-in.
type Identity struct {
	AccountID     string
	Provider      string
	Subject       string
	Email         string
	Name          *string
	Picture       *string
	EmailVerified bool
}

// CredentialsProvider names password sign-in.
const CredentialsProvider = "credentials"

// IdentityFromAccount builds the identity produced by a successful
// credential verification.
func IdentityFromAccount(a *Account) Identity {
	return Identity{
		AccountID: a.ID,
		Provider:  CredentialsProvider,
		Subject:   a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Picture:   a.Image,
	}
}

// SessionUser is the user half of a materialized session.
type SessionUser struct {
	ID    string  `json:"id"`
	Name  *string `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image"`
}

// Session is the client-facing view of a session token.
type Session struct {
	User    SessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}

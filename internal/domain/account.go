package domain

import (
	"strings"
	"time"
)

// Account is a registered user of the application.
type Account struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	PasswordHash  *string    `json:"-"`
	Name          *string    `json:"name,omitempty"`
	Image         *string    `json:"image,omitempty"`
	EmailVerified *time.Time `json:"email_verified,omitempty"`
	SignupDate    time.Time  `json:"signup_date"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

// HasPassword reports whether the account can sign in with a password.
// Accounts provisioned through an OAuth provider have no hash.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// CanonicalEmail returns the form used for lookup and uniqueness:
// surrounding whitespace removed and lower-cased.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UsernameFromEmail returns the local part of email, everything before the
// first "@". Usernames are display-only and not unique.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// ProfileUpdate holds the user-editable profile fields. Nil leaves a field
// unchanged.
type ProfileUpdate struct {
	Name  *string
	Image *string
}

// LinkedIdentity ties an external provider identity to an account.
type LinkedIdentity struct {
	AccountID string    `json:"account_id"`
	Provider  string    `json:"provider"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"created_at"`
}

package repository

import (
	"context"
	"time"

	"github.com/abhayc-main/next-starter/internal/domain"
)

// AccountRepository defines account persistence. Implementations return
// domain.ErrAccountNotFound for missing rows and domain.ErrDuplicateAccount
// for unique-email violations, and lookups take a canonical email.
type AccountRepository interface {
	// Create inserts a new account. The store's unique email index is the
	// only guard against duplicates.
	Create(ctx context.Context, account *domain.Account) error

	// CreateWithIdentity inserts an account and links an external identity
	// to it in one transaction.
	CreateWithIdentity(ctx context.Context, account *domain.Account, identity domain.LinkedIdentity) error

	// GetByID retrieves an account by its identifier.
	GetByID(ctx context.Context, id string) (*domain.Account, error)

	// GetByEmail retrieves the account with exactly this email.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)

	// FindFirstByEmail returns the first account matching email. It is used
	// by session refresh, where an absent account is a normal outcome.
	FindFirstByEmail(ctx context.Context, email string) (*domain.Account, error)

	// GetByIdentity retrieves the account linked to a provider subject.
	GetByIdentity(ctx context.Context, provider, subject string) (*domain.Account, error)

	// LinkIdentity attaches an external identity to an existing account.
	LinkIdentity(ctx context.Context, identity domain.LinkedIdentity) error

	// UpdateLastLogin stamps the account's most recent sign-in.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// UpdateProfile applies non-nil profile fields and returns the result.
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Account, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

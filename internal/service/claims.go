package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhayc-main/next-starter/internal/domain"
)

// AccountFinder is the lookup the claims builder needs.
type AccountFinder interface {
	FindFirstByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// refreshOutcome is the result of looking up the account behind a set of
// claims: accountFound or accountMissing.
type refreshOutcome interface {
	isRefreshOutcome()
}

type accountFound struct {
	account *domain.Account
}

type accountMissing struct{}

func (accountFound) isRefreshOutcome()   {}
func (accountMissing) isRefreshOutcome() {}

// ClaimsBuilder rebuilds session claims from the account store every time a
// token is issued or refreshed.
type ClaimsBuilder struct {
	accounts AccountFinder
	logger   *slog.Logger
}

// NewClaimsBuilder creates a claims builder.
func NewClaimsBuilder(accounts AccountFinder, logger *slog.Logger) *ClaimsBuilder {
	return &ClaimsBuilder{accounts: accounts, logger: logger}
}

// SignIn seeds claims from the identity produced by an authentication event
// and refreshes them against the store.
func (b *ClaimsBuilder) SignIn(ctx context.Context, identity domain.Identity) (domain.Claims, error) {
	seed := domain.Claims{
		ID:      identity.AccountID,
		Name:    identity.Name,
		Email:   identity.Email,
		Picture: identity.Picture,
	}
	return b.Refresh(ctx, seed, &identity)
}

// Refresh looks up the account by prev.Email. A found account overwrites
// every claim. A missing account keeps prev, taking the account id from
// trigger when one is given. Store failures are returned as errors and are
// never treated as a missing account.
func (b *ClaimsBuilder) Refresh(ctx context.Context, prev domain.Claims, trigger *domain.Identity) (domain.Claims, error) {
	outcome, err := b.lookup(ctx, prev.Email)
	if err != nil {
		claimsRefreshes.WithLabelValues("error").Inc()
		return domain.Claims{}, err
	}

	switch o := outcome.(type) {
	case accountFound:
		claimsRefreshes.WithLabelValues("found").Inc()
		return domain.ClaimsFromAccount(o.account), nil
	case accountMissing:
		claimsRefreshes.WithLabelValues("missing").Inc()
		next := prev
		if trigger != nil && trigger.AccountID != "" {
			next.ID = trigger.AccountID
		}
		b.logger.DebugContext(ctx, "claims refresh kept previous claims",
			slog.String("account_id", next.ID),
		)
		return next, nil
	default:
		return domain.Claims{}, fmt.Errorf("unexpected refresh outcome %T", outcome)
	}
}

func (b *ClaimsBuilder) lookup(ctx context.Context, email string) (refreshOutcome, error) {
	if email == "" {
		return accountMissing{}, nil
	}
	account, err := b.accounts.FindFirstByEmail(ctx, domain.CanonicalEmail(email))
	switch {
	case err == nil:
		return accountFound{account: account}, nil
	case errors.Is(err, domain.ErrAccountNotFound):
		return accountMissing{}, nil
	default:
		return nil, fmt.Errorf("refresh claims: %w", err)
	}
}

// Session materializes the client-facing session for claims.
func (b *ClaimsBuilder) Session(claims domain.Claims, expires time.Time) domain.Session {
	return domain.Session{
		User: domain.SessionUser{
			ID:    claims.ID,
			Name:  claims.Name,
			Email: claims.Email,
			Image: claims.Picture,
		},
		Expires: expires,
	}
}

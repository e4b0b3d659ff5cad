package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abhayc-main/next-starter/internal/auth"
	"github.com/abhayc-main/next-starter/internal/domain"
	"github.com/abhayc-main/next-starter/internal/repository"
	"github.com/abhayc-main/next-starter/pkg/validator"
)

// PasswordHasher hashes and verifies passwords. *auth.PasswordHasher
// implements it.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Compare(ctx context.Context, hash, password string) error
	CompareDummy(ctx context.Context, password string) error
}

// TokenIssuer signs session tokens. *auth.JWTManager implements it.
type TokenIssuer interface {
	Issue(claims domain.Claims) (string, time.Time, error)
}

// EventPublisher publishes account domain events.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, account *domain.Account, provider string) error
	PublishAccountUpdated(ctx context.Context, account *domain.Account) error
}

// AccountService implements registration, credential verification and
// session issuance.
type AccountService struct {
	repo     repository.AccountRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	claims   *ClaimsBuilder
	producer EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewAccountService creates a new account service.
func NewAccountService(
	repo repository.AccountRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	claims *ClaimsBuilder,
	producer EventPublisher,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		repo:     repo,
		hasher:   hasher,
		tokens:   tokens,
		claims:   claims,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// --- Input/Output types ---

// CredentialInput is a registration form submission. It is never persisted.
type CredentialInput struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,bytemax=72"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginInput is a sign-in form submission.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileInput holds the user-editable profile fields.
type ProfileInput struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Image *string `json:"image" validate:"omitempty,url,max=2048"`
}

// IssuedSession is a signed session token and the claims it carries.
type IssuedSession struct {
	Token   string
	Expires time.Time
	Claims  domain.Claims
}

// AuthResult is returned by every sign-in path.
type AuthResult struct {
	Account *domain.Account
	Session IssuedSession
}

// --- Registration and sign-in ---

// Register provisions a credentials account and signs it in. The password
// confirmation is checked before any hashing or store access, and the
// store's unique email index is the only duplicate check.
func (s *AccountService) Register(ctx context.Context, input CredentialInput) (result *AuthResult, err error) {
	defer func() { recordOutcome("register", err) }()

	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if input.Password != input.ConfirmPassword {
		return nil, domain.ErrPasswordMismatch
	}

	email := domain.CanonicalEmail(input.Email)
	hash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	account := &domain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     domain.UsernameFromEmail(email),
		PasswordHash: &hash,
		SignupDate:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID),
	)

	if err := s.producer.PublishAccountRegistered(ctx, account, domain.CredentialsProvider); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.registered event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	// The new account signs in through the same path as a returning one.
	result, err = s.signInWithPassword(ctx, email, input.Password)
	if err != nil {
		return nil, fmt.Errorf("sign in after registration: %w", err)
	}
	return result, nil
}

// Login verifies credentials and issues a session.
func (s *AccountService) Login(ctx context.Context, input LoginInput) (result *AuthResult, err error) {
	defer func() { recordOutcome("login", err) }()

	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	return s.signInWithPassword(ctx, input.Email, input.Password)
}

func (s *AccountService) signInWithPassword(ctx context.Context, email, password string) (*AuthResult, error) {
	account, err := s.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s.touchLastLogin(ctx, account)

	session, err := s.issue(ctx, domain.IdentityFromAccount(account))
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account signed in",
		slog.String("account_id", account.ID),
		slog.String("provider", domain.CredentialsProvider),
	)
	return &AuthResult{Account: account, Session: session}, nil
}

// Verify checks a password against the stored hash for email. An unknown
// email, an account without a password and a wrong password all return
// domain.ErrInvalidCredentials after the same amount of hashing work.
func (s *AccountService) Verify(ctx context.Context, email, password string) (*domain.Account, error) {
	account, err := s.repo.GetByEmail(ctx, domain.CanonicalEmail(email))
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	if account == nil || !account.HasPassword() {
		if err := s.hasher.CompareDummy(ctx, password); err != nil && !errors.Is(err, auth.ErrMismatch) {
			return nil, fmt.Errorf("verify credentials: %w", err)
		}
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.hasher.Compare(ctx, *account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrMismatch) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify credentials: %w", err)
	}
	return account, nil
}

// SignInWithIdentity reconciles an external provider identity with the
// account store and issues a session. The identity is matched by provider
// subject first, then by email when the provider verified it, and otherwise
// a password-less account is created and linked in one transaction.
func (s *AccountService) SignInWithIdentity(ctx context.Context, identity domain.Identity) (result *AuthResult, err error) {
	defer func() { recordOutcome("oauth_sign_in", err) }()

	if identity.Provider == "" || identity.Subject == "" || identity.Email == "" {
		return nil, domain.ErrInvalidCredentials
	}
	identity.Email = domain.CanonicalEmail(identity.Email)

	account, err := s.resolveIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}

	s.touchLastLogin(ctx, account)

	identity.AccountID = account.ID
	session, err := s.issue(ctx, identity)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account signed in",
		slog.String("account_id", account.ID),
		slog.String("provider", identity.Provider),
	)
	return &AuthResult{Account: account, Session: session}, nil
}

func (s *AccountService) resolveIdentity(ctx context.Context, identity domain.Identity) (*domain.Account, error) {
	account, err := s.findOrCreateByIdentity(ctx, identity)
	if errors.Is(err, domain.ErrDuplicateAccount) || errors.Is(err, domain.ErrIdentityLinked) {
		// A concurrent first sign-in for the same person got there first.
		s.logger.InfoContext(ctx, "identity resolved concurrently, retrying lookup",
			slog.String("provider", identity.Provider),
		)
		account, err = s.findOrCreateByIdentity(ctx, identity)
	}
	return account, err
}

func (s *AccountService) findOrCreateByIdentity(ctx context.Context, identity domain.Identity) (*domain.Account, error) {
	account, err := s.repo.GetByIdentity(ctx, identity.Provider, identity.Subject)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("get account by identity: %w", err)
	}

	now := s.now().UTC()
	link := domain.LinkedIdentity{
		Provider:  identity.Provider,
		Subject:   identity.Subject,
		CreatedAt: now,
	}

	account, err = s.repo.GetByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		if !identity.EmailVerified {
			return nil, domain.ErrAccountNotLinked
		}
		link.AccountID = account.ID
		if err := s.repo.LinkIdentity(ctx, link); err != nil {
			return nil, fmt.Errorf("link identity: %w", err)
		}
		s.logger.InfoContext(ctx, "identity linked to existing account",
			slog.String("account_id", account.ID),
			slog.String("provider", identity.Provider),
		)
		return account, nil
	case !errors.Is(err, domain.ErrAccountNotFound):
		return nil, fmt.Errorf("get account by email: %w", err)
	}

	account = &domain.Account{
		ID:         uuid.New().String(),
		Email:      identity.Email,
		Username:   domain.UsernameFromEmail(identity.Email),
		Name:       identity.Name,
		Image:      identity.Picture,
		SignupDate: now,
	}
	if identity.EmailVerified {
		account.EmailVerified = &now
	}
	if err := s.repo.CreateWithIdentity(ctx, account, link); err != nil {
		return nil, fmt.Errorf("create account with identity: %w", err)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID),
		slog.String("provider", identity.Provider),
	)
	if err := s.producer.PublishAccountRegistered(ctx, account, identity.Provider); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.registered event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}
	return account, nil
}

// touchLastLogin records the sign-in time. Failure does not block sign-in.
func (s *AccountService) touchLastLogin(ctx context.Context, account *domain.Account) {
	at := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, account.ID, at); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	account.LastLogin = &at
}

func (s *AccountService) issue(ctx context.Context, identity domain.Identity) (IssuedSession, error) {
	claims, err := s.claims.SignIn(ctx, identity)
	if err != nil {
		return IssuedSession{}, err
	}
	return s.sign(claims)
}

func (s *AccountService) sign(claims domain.Claims) (IssuedSession, error) {
	token, expires, err := s.tokens.Issue(claims)
	if err != nil {
		return IssuedSession{}, fmt.Errorf("issue session token: %w", err)
	}
	return IssuedSession{Token: token, Expires: expires, Claims: claims}, nil
}

// --- Sessions ---

// RefreshSession rebuilds claims from the store and issues a fresh token.
func (s *AccountService) RefreshSession(ctx context.Context, prev domain.Claims) (session IssuedSession, err error) {
	defer func() { recordOutcome("refresh", err) }()

	claims, err := s.claims.Refresh(ctx, prev, nil)
	if err != nil {
		return IssuedSession{}, err
	}
	return s.sign(claims)
}

// Session materializes the client-facing view of claims.
func (s *AccountService) Session(claims domain.Claims, expires time.Time) domain.Session {
	return s.claims.Session(claims, expires)
}

// --- Profile ---

// Profile returns the account with the given id.
func (s *AccountService) Profile(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// UpdateProfile changes the display name and avatar. The next session
// refresh picks up the new values.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, input ProfileInput) (*domain.Account, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	account, err := s.repo.UpdateProfile(ctx, accountID, domain.ProfileUpdate{Name: input.Name, Image: input.Image})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if err := s.producer.PublishAccountUpdated(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.updated event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "profile updated",
		slog.String("account_id", account.ID),
	)
	return account, nil
}

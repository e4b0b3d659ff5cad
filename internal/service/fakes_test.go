package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/abhayc-main/next-starter/internal/auth"
	"github.com/abhayc-main/next-starter/internal/domain"
)

// memRepo is an in-memory account store. Like the real store, the unique
// email index is the only thing preventing duplicates.
type memRepo struct {
	mu         sync.Mutex
	accounts   map[string]*domain.Account
	byEmail    map[string]string
	identities map[string]string

	calls        atomic.Int64
	err          error
	lastLoginErr error

	// beforeCreate runs ahead of CreateWithIdentity, outside the lock.
	beforeCreate func()
}

func newMemRepo() *memRepo {
	return &memRepo{
		accounts:   make(map[string]*domain.Account),
		byEmail:    make(map[string]string),
		identities: make(map[string]string),
	}
}

func identityKey(provider, subject string) string { return provider + "|" + subject }

func copyAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func (r *memRepo) begin() error {
	r.calls.Add(1)
	return r.err
}

func (r *memRepo) insertLocked(a *domain.Account) error {
	if _, ok := r.byEmail[a.Email]; ok {
		return domain.ErrDuplicateAccount
	}
	r.accounts[a.ID] = copyAccount(a)
	r.byEmail[a.Email] = a.ID
	return nil
}

func (r *memRepo) Create(_ context.Context, a *domain.Account) error {
	if err := r.begin(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(a)
}

func (r *memRepo) CreateWithIdentity(_ context.Context, a *domain.Account, li domain.LinkedIdentity) error {
	if err := r.begin(); err != nil {
		return err
	}
	if hook := r.beforeCreate; hook != nil {
		r.beforeCreate = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := identityKey(li.Provider, li.Subject)
	if _, ok := r.identities[key]; ok {
		return domain.ErrIdentityLinked
	}
	if err := r.insertLocked(a); err != nil {
		return err
	}
	r.identities[key] = a.ID
	return nil
}

func (r *memRepo) lookup(index map[string]string, key string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := index[key]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return copyAccount(r.accounts[id]), nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return copyAccount(a), nil
}

func (r *memRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	return r.lookup(r.byEmail, email)
}

func (r *memRepo) FindFirstByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.GetByEmail(ctx, email)
}

func (r *memRepo) GetByIdentity(_ context.Context, provider, subject string) (*domain.Account, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	return r.lookup(r.identities, identityKey(provider, subject))
}

func (r *memRepo) LinkIdentity(_ context.Context, li domain.LinkedIdentity) error {
	if err := r.begin(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := identityKey(li.Provider, li.Subject)
	if _, ok := r.identities[key]; ok {
		return domain.ErrIdentityLinked
	}
	r.identities[key] = li.AccountID
	return nil
}

func (r *memRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	if err := r.begin(); err != nil {
		return err
	}
	if r.lastLoginErr != nil {
		return r.lastLoginErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.LastLogin = &at
	return nil
}

func (r *memRepo) UpdateProfile(_ context.Context, id string, u domain.ProfileUpdate) (*domain.Account, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if u.Name != nil {
		a.Name = u.Name
	}
	if u.Image != nil {
		a.Image = u.Image
	}
	return copyAccount(a), nil
}

func (r *memRepo) Ping(context.Context) error { return r.err }

// add stores an account directly, bypassing the call counter.
func (r *memRepo) add(a *domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.insertLocked(a)
}

// addWithIdentity stores an account and its linked identity directly.
func (r *memRepo) addWithIdentity(a *domain.Account, provider, subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.insertLocked(a)
	r.identities[identityKey(provider, subject)] = a.ID
}

// countingHasher records how much hashing work each call performs.
type countingHasher struct {
	inner    *auth.PasswordHasher
	hashes   atomic.Int64
	compares atomic.Int64
}

func (h *countingHasher) Hash(ctx context.Context, password string) (string, error) {
	h.hashes.Add(1)
	return h.inner.Hash(ctx, password)
}

func (h *countingHasher) Compare(ctx context.Context, hash, password string) error {
	h.compares.Add(1)
	return h.inner.Compare(ctx, hash, password)
}

func (h *countingHasher) CompareDummy(ctx context.Context, password string) error {
	h.compares.Add(1)
	return h.inner.CompareDummy(ctx, password)
}

// --- Mock Event Publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishAccountRegistered(ctx context.Context, account *domain.Account, provider string) error {
	args := m.Called(ctx, account, provider)
	return args.Error(0)
}

func (m *mockPublisher) PublishAccountUpdated(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

type testEnv struct {
	svc       *AccountService
	repo      *memRepo
	hasher    *countingHasher
	jwt       *auth.JWTManager
	publisher *mockPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	inner, err := auth.NewPasswordHasher(bcrypt.MinCost, 0)
	require.NoError(t, err)

	repo := newMemRepo()
	hasher := &countingHasher{inner: inner}
	jwtManager := auth.NewJWTManager("test-secret-that-is-at-least-32-characters-long", time.Hour)
	publisher := &mockPublisher{}
	publisher.On("PublishAccountRegistered", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	publisher.On("PublishAccountUpdated", mock.Anything, mock.Anything).Return(nil).Maybe()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	claims := NewClaimsBuilder(repo, logger)
	svc := NewAccountService(repo, hasher, jwtManager, claims, publisher, logger)

	return &testEnv{svc: svc, repo: repo, hasher: hasher, jwt: jwtManager, publisher: publisher}
}

func strPtr(s string) *string { return &s }

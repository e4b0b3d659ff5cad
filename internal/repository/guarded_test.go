package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhayc-main/next-starter/internal/domain"
)

// stubRepo returns err from every call. When block is set, calls wait for
// the context to expire.
type stubRepo struct {
	err   error
	block bool
	calls int
}

func (s *stubRepo) do(ctx context.Context) error {
	s.calls++
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func (s *stubRepo) Create(ctx context.Context, _ *domain.Account) error { return s.do(ctx) }

func (s *stubRepo) CreateWithIdentity(ctx context.Context, _ *domain.Account, _ domain.LinkedIdentity) error {
	return s.do(ctx)
}

func (s *stubRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if err := s.do(ctx); err != nil {
		return nil, err
	}
	return &domain.Account{ID: id}, nil
}

func (s *stubRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if err := s.do(ctx); err != nil {
		return nil, err
	}
	return &domain.Account{ID: "acct-1", Email: email}, nil
}

func (s *stubRepo) FindFirstByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.GetByEmail(ctx, email)
}

func (s *stubRepo) GetByIdentity(ctx context.Context, _, _ string) (*domain.Account, error) {
	return s.GetByID(ctx, "acct-1")
}

func (s *stubRepo) LinkIdentity(ctx context.Context, _ domain.LinkedIdentity) error { return s.do(ctx) }

func (s *stubRepo) UpdateLastLogin(ctx context.Context, _ string, _ time.Time) error { return s.do(ctx) }

func (s *stubRepo) UpdateProfile(ctx context.Context, id string, _ domain.ProfileUpdate) (*domain.Account, error) {
	return s.GetByID(ctx, id)
}

func (s *stubRepo) Ping(ctx context.Context) error { return s.do(ctx) }

func testGuardConfig() GuardConfig {
	cfg := DefaultGuardConfig(50 * time.Millisecond)
	cfg.Name = "test-store"
	cfg.MinRequests = 3
	cfg.OpenTimeout = time.Minute
	return cfg
}

func newGuarded(next AccountRepository) *GuardedAccountRepository {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGuardedAccountRepository(next, testGuardConfig(), logger)
}

func TestGuarded_PassesThroughResults(t *testing.T) {
	g := newGuarded(&stubRepo{})

	acct, err := g.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", acct.Email)
}

func TestGuarded_BusinessErrorsPassThroughUnchanged(t *testing.T) {
	for _, want := range []error{domain.ErrAccountNotFound, domain.ErrDuplicateAccount, domain.ErrIdentityLinked} {
		g := newGuarded(&stubRepo{err: want})
		_, err := g.GetByEmail(context.Background(), "x@y.z")
		assert.ErrorIs(t, err, want)
		assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
	}
}

func TestGuarded_BusinessErrorsDoNotTripBreaker(t *testing.T) {
	stub := &stubRepo{err: domain.ErrAccountNotFound}
	g := newGuarded(stub)

	for i := 0; i < 10; i++ {
		_, err := g.FindFirstByEmail(context.Background(), "missing@example.com")
		require.ErrorIs(t, err, domain.ErrAccountNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())
	assert.Equal(t, 10, stub.calls)
}

func TestGuarded_TimeoutMapsToStoreUnavailable(t *testing.T) {
	g := newGuarded(&stubRepo{block: true})

	start := time.Now()
	err := g.Create(context.Background(), &domain.Account{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGuarded_ConnectionErrorMapsToStoreUnavailable(t *testing.T) {
	g := newGuarded(&stubRepo{err: &pgconn.PgError{Code: "08006", Message: "connection failure"}})

	_, err := g.GetByID(context.Background(), "acct-1")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestGuarded_UnknownErrorPassesThrough(t *testing.T) {
	boom := errors.New("syntax error at or near")
	g := newGuarded(&stubRepo{err: boom})

	err := g.LinkIdentity(context.Background(), domain.LinkedIdentity{})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestGuarded_OpensAfterRepeatedFailures(t *testing.T) {
	stub := &stubRepo{err: &pgconn.PgError{Code: "08001"}}
	g := newGuarded(stub)

	for i := 0; i < 3; i++ {
		_ = g.UpdateLastLogin(context.Background(), "acct-1", time.Now())
	}
	require.Equal(t, gobreaker.StateOpen, g.State())

	err := g.UpdateLastLogin(context.Background(), "acct-1", time.Now())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 3, stub.calls, "open breaker must not reach the store")
}

func TestGuarded_PingBypassesBreaker(t *testing.T) {
	stub := &stubRepo{err: &pgconn.PgError{Code: "08001"}}
	g := newGuarded(stub)
	for i := 0; i < 3; i++ {
		_, _ = g.GetByID(context.Background(), "acct-1")
	}
	require.Equal(t, gobreaker.StateOpen, g.State())

	stub.err = nil
	assert.NoError(t, g.Ping(context.Background()))
}

func TestStateToFloat(t *testing.T) {
	assert.Equal(t, 0.0, stateToFloat(gobreaker.StateClosed))
	assert.Equal(t, 1.0, stateToFloat(gobreaker.StateHalfOpen))
	assert.Equal(t, 2.0, stateToFloat(gobreaker.StateOpen))
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"github.com/abhayc-main/next-starter/internal/domain"
	"github.com/abhayc-main/next-starter/pkg/database"
)

var circuitBreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// GuardConfig configures GuardedAccountRepository.
type GuardConfig struct {
	Name string

	// CallTimeout bounds every store call.
	CallTimeout time.Duration

	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts. Zero never clears them.
	Interval time.Duration

	// OpenTimeout is how long the breaker stays open before a trial call.
	OpenTimeout time.Duration

	// FailureRatio trips the breaker once MinRequests calls have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultGuardConfig returns the production breaker settings.
func DefaultGuardConfig(callTimeout time.Duration) GuardConfig {
	return GuardConfig{
		Name:         "account-store",
		CallTimeout:  callTimeout,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		OpenTimeout:  30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// GuardedAccountRepository decorates an AccountRepository with a per-call
// timeout and a circuit breaker. Timeouts, connection failures and calls
// rejected by an open breaker surface as domain.ErrStoreUnavailable.
// Not-found and duplicate results are business outcomes and never count
// against the breaker.
type GuardedAccountRepository struct {
	next    AccountRepository
	breaker *gobreaker.CircuitBreaker[any]
	timeout time.Duration
	logger  *slog.Logger
}

var _ AccountRepository = (*GuardedAccountRepository)(nil)

// NewGuardedAccountRepository wraps next.
func NewGuardedAccountRepository(next AccountRepository, cfg GuardConfig, logger *slog.Logger) *GuardedAccountRepository {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			circuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	}
	circuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	return &GuardedAccountRepository{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		timeout: cfg.CallTimeout,
		logger:  logger,
	}
}

// isBreakerSuccess counts business outcomes as healthy store calls.
func isBreakerSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrAccountNotFound) ||
		errors.Is(err, domain.ErrDuplicateAccount) ||
		errors.Is(err, domain.ErrIdentityLinked) ||
		errors.Is(err, context.Canceled)
}

// State reports the breaker state.
func (g *GuardedAccountRepository) State() gobreaker.State {
	return g.breaker.State()
}

func guard[T any](ctx context.Context, g *GuardedAccountRepository, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	res, err := g.breaker.Execute(func() (any, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return fn(callCtx)
	})
	if err != nil {
		return zero, classify(op, err)
	}
	v, _ := res.(T)
	return v, nil
}

// classify maps infrastructure failures onto domain.ErrStoreUnavailable and
// passes business errors through untouched.
func classify(op string, err error) error {
	switch {
	case isBreakerSuccess(err):
		return err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
	case database.IsTransient(err):
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
	default:
		return err
	}
}

func (g *GuardedAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	_, err := guard(ctx, g, "create account", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.next.Create(ctx, account)
	})
	return err
}

func (g *GuardedAccountRepository) CreateWithIdentity(ctx context.Context, account *domain.Account, identity domain.LinkedIdentity) error {
	_, err := guard(ctx, g, "create account with identity", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.next.CreateWithIdentity(ctx, account, identity)
	})
	return err
}

func (g *GuardedAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return guard(ctx, g, "get account by id", func(ctx context.Context) (*domain.Account, error) {
		return g.next.GetByID(ctx, id)
	})
}

func (g *GuardedAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return guard(ctx, g, "get account by email", func(ctx context.Context) (*domain.Account, error) {
		return g.next.GetByEmail(ctx, email)
	})
}

func (g *GuardedAccountRepository) FindFirstByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return guard(ctx, g, "find account by email", func(ctx context.Context) (*domain.Account, error) {
		return g.next.FindFirstByEmail(ctx, email)
	})
}

func (g *GuardedAccountRepository) GetByIdentity(ctx context.Context, provider, subject string) (*domain.Account, error) {
	return guard(ctx, g, "get account by identity", func(ctx context.Context) (*domain.Account, error) {
		return g.next.GetByIdentity(ctx, provider, subject)
	})
}

func (g *GuardedAccountRepository) LinkIdentity(ctx context.Context, identity domain.LinkedIdentity) error {
	_, err := guard(ctx, g, "link identity", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.next.LinkIdentity(ctx, identity)
	})
	return err
}

func (g *GuardedAccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := guard(ctx, g, "update last login", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.next.UpdateLastLogin(ctx, id, at)
	})
	return err
}

func (g *GuardedAccountRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Account, error) {
	return guard(ctx, g, "update profile", func(ctx context.Context) (*domain.Account, error) {
		return g.next.UpdateProfile(ctx, id, update)
	})
}

// Ping bypasses the breaker so readiness reflects the real store state.
func (g *GuardedAccountRepository) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}

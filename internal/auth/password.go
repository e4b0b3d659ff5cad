package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

var hashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "auth_password_hash_duration_seconds",
		Help:    "Time spent hashing or comparing passwords.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	},
	[]string{"operation"},
)

// ErrMismatch is returned by Compare when the password does not match.
var ErrMismatch = errors.New("password does not match hash")

// PasswordHasher hashes and verifies passwords with bcrypt. Work is bounded
// by a weighted semaphore so a burst of sign-ins cannot starve the CPU.
type PasswordHasher struct {
	cost  int
	sem   *semaphore.Weighted
	dummy []byte
}

// NewPasswordHasher creates a hasher with the given bcrypt cost. A
// concurrency of zero or less uses GOMAXPROCS.
func NewPasswordHasher(cost, concurrency int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	// Compared against when no stored hash exists, so unknown accounts take
	// as long as wrong passwords.
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), cost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	return &PasswordHasher{
		cost:  cost,
		sem:   semaphore.NewWeighted(int64(concurrency)),
		dummy: dummy,
	}, nil
}

// Hash returns a salted bcrypt hash of password.
func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.sem.Release(1)

	start := time.Now()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	hashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Compare checks password against hash. It returns ErrMismatch for a wrong
// password and another error if the hash is malformed or ctx is done.
func (h *PasswordHasher) Compare(ctx context.Context, hash, password string) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.sem.Release(1)

	start := time.Now()
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	hashDuration.WithLabelValues("compare").Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrMismatch
	default:
		return fmt.Errorf("compare password: %w", err)
	}
}

// CompareDummy burns the same work as Compare against a fixed hash. The
// result is always ErrMismatch unless ctx is done.
func (h *PasswordHasher) CompareDummy(ctx context.Context, password string) error {
	if err := h.Compare(ctx, string(h.dummy), password); err != nil && !errors.Is(err, ErrMismatch) {
		return err
	}
	return ErrMismatch
}

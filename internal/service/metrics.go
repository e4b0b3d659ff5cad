package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/abhayc-main/next-starter/internal/domain"
	"github.com/abhayc-main/next-starter/pkg/validator"
)

var (
	authOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Authentication operations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	claimsRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_claims_refresh_total",
			Help: "Session claims refreshes by lookup result.",
		},
		[]string{"result"},
	)
)

// outcomeOf reduces an operation error to a low-cardinality label.
func outcomeOf(err error) string {
	var valErr *validator.ValidationError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &valErr), errors.Is(err, domain.ErrPasswordMismatch):
		return "invalid_input"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "rejected"
	case errors.Is(err, domain.ErrDuplicateAccount), errors.Is(err, domain.ErrAccountNotLinked):
		return "conflict"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func recordOutcome(operation string, err error) {
	authOutcomes.WithLabelValues(operation, outcomeOf(err)).Inc()
}

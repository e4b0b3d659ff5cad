package database

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/abhayc-main/next-starter/pkg/database"

// Values of the db.outcome span attribute.
const (
	OutcomeOK       = "ok"
	OutcomeNoRows   = "no_rows"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

type slowQueryLog struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowQueries atomic.Pointer[slowQueryLog]

// SetSlowQueryLogging makes account store queries that take at least
// threshold log a warning. A zero threshold or nil logger turns it off.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	if threshold <= 0 || logger == nil {
		slowQueries.Store(nil)
		return
	}
	slowQueries.Store(&slowQueryLog{threshold: threshold, logger: logger})
}

// QueryOutcome classifies a driver error. A missing row or a unique
// violation is an answer for the account store (unknown email, email taken),
// not a failure.
func QueryOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, pgx.ErrNoRows):
		return OutcomeNoRows
	case IsUniqueViolation(err):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}

// TraceQuery starts a client span named "db.<operation>" for one account
// store statement. Pass the raw driver error to the returned function, before
// it is mapped to a domain error:
//
//	ctx, end := database.TraceQuery(ctx, "GetAccountByEmail", query)
//	err := db.QueryRow(ctx, query, email).Scan(...)
//	end(err)
//
// Only OutcomeError marks the span as failed.
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		outcome := QueryOutcome(err)
		span.SetAttributes(attribute.String("db.outcome", outcome))
		if outcome == OutcomeError {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		slow := slowQueries.Load()
		if slow == nil {
			return
		}
		elapsed := time.Since(start)
		if elapsed < slow.threshold {
			return
		}
		attrs := []any{
			slog.String("operation", operation),
			slog.String("outcome", outcome),
			slog.Duration("duration", elapsed),
			slog.String("statement", statement),
		}
		if outcome == OutcomeError {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		slow.logger.WarnContext(ctx, "slow account query", attrs...)
	}
}

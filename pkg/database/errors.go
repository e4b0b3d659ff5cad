package database

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

var connErrPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"connect: connection",
	"dial tcp",
	"EOF",
	"connection timed out",
	"server closed the connection unexpectedly",
	"could not connect",
	"conn closed",
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return strings.Contains(err.Error(), uniqueViolationCode)
}

// IsConnectionError reports whether err looks like a network-level problem
// rather than a SQL syntax or constraint error.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception.
		return strings.HasPrefix(pgErr.Code, "08")
	}
	msg := err.Error()
	for _, p := range connErrPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransient reports whether a failed store call may succeed on retry:
// deadlines, pgconn timeouts and connection errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	return IsConnectionError(err)
}

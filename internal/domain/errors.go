package domain

import (
	"fmt"

	apperrors "github.com/abhayc-main/next-starter/pkg/errors"
)

// Domain errors wrap the generic sentinels so callers can match either.
var (
	ErrAccountNotFound    = fmt.Errorf("account not found: %w", apperrors.ErrNotFound)
	ErrDuplicateAccount   = fmt.Errorf("account already exists: %w", apperrors.ErrAlreadyExists)
	ErrPasswordMismatch   = fmt.Errorf("passwords do not match: %w", apperrors.ErrInvalidInput)
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", apperrors.ErrUnauthorized)
	ErrStoreUnavailable   = fmt.Errorf("account store unavailable: %w", apperrors.ErrServiceUnavail)
	ErrIdentityLinked     = fmt.Errorf("identity linked to another account: %w", apperrors.ErrConflict)
	ErrInvalidSession     = fmt.Errorf("invalid session: %w", apperrors.ErrUnauthorized)
	ErrAccountNotLinked   = fmt.Errorf("email is registered with another sign-in method: %w", apperrors.ErrConflict)
)

package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/abhayc-main/next-starter/internal/domain"
	"github.com/abhayc-main/next-starter/internal/oauth"
	apperrors "github.com/abhayc-main/next-starter/pkg/errors"
	"github.com/abhayc-main/next-starter/pkg/httputil"
)

// toAppError maps domain errors onto client-facing error codes. Errors it
// does not recognize are returned unchanged.
func toAppError(err error) error {
	switch {
	case errors.Is(err, domain.ErrPasswordMismatch):
		return apperrors.Validation("request validation failed", map[string]string{
			"confirm_password": "must match password",
		})
	case errors.Is(err, domain.ErrDuplicateAccount):
		return apperrors.New("ACCOUNT_EXISTS", "an account with this email already exists", http.StatusConflict, err)
	case errors.Is(err, domain.ErrInvalidCredentials):
		return apperrors.New("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, err)
	case errors.Is(err, domain.ErrInvalidSession):
		return apperrors.Unauthorized("invalid or expired session")
	case errors.Is(err, domain.ErrAccountNotLinked):
		return apperrors.New("ACCOUNT_NOT_LINKED", "this email is registered with another sign-in method", http.StatusConflict, err)
	case errors.Is(err, domain.ErrAccountNotFound):
		return apperrors.New("NOT_FOUND", "account not found", http.StatusNotFound, err)
	case errors.Is(err, domain.ErrStoreUnavailable):
		return apperrors.ServiceUnavailable("service temporarily unavailable, please retry", err)
	case errors.Is(err, oauth.ErrUnknownProvider):
		return apperrors.New("UNKNOWN_PROVIDER", "unknown sign-in provider", http.StatusNotFound, err)
	case errors.Is(err, oauth.ErrInvalidState):
		return apperrors.New("INVALID_OAUTH_STATE", "sign-in request expired or was already used", http.StatusUnauthorized, err)
	case errors.Is(err, oauth.ErrExchangeFailed):
		return apperrors.New("OAUTH_FAILED", "could not complete sign-in with the provider", http.StatusUnauthorized, err)
	default:
		return err
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	httputil.WriteError(w, r, toAppError(err), logger)
}

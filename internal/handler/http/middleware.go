package http

import (
	"net/http"
	"strings"

	apperrors "github.com/abhayc-main/next-starter/pkg/errors"
	"github.com/abhayc-main/next-starter/pkg/httputil"
)

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				httputil.WriteError(w, r, apperrors.New(
					"UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json", http.StatusUnsupportedMediaType, apperrors.ErrInvalidInput,
				), nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

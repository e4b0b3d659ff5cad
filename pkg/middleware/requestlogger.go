package middleware

import (
	"log/slog"
	"net/http"

	"github.com/abhayc-main/next-starter/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// correlation_id, account_id, trace_id and span_id when they are known.
// Downstream code retrieves it with logger.FromContext.
//
// Mount it after RequestLogging and Tracing. Routes behind Auth should mount
// it again inside the authenticated group so account_id is picked up.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := AccountIDFromContext(ctx); id != "" {
				ctx = logger.WithAccountID(ctx, id)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

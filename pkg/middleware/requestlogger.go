package middleware

import (
	"log/slog"
	"net/http"

	"github.com/ThureinS/bookreview/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// whatever correlation id, client identity and span context upstream
// middleware has attached. Handlers retrieve it with logger.FromContext.
//
// Mount it after RequestLogging, Tracing and the client identity middleware.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

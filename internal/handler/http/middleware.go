package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/ThureinS/bookreview/internal/ratelimit"
	"github.com/ThureinS/bookreview/pkg/logger"
)

// UserIDHeader carries the authenticated user id set by an upstream gateway.
const UserIDHeader = "X-User-ID"

type contextKey string

const identityKey contextKey = "identity"

// Identify resolves the submitter identity for every request: the
// authenticated user when X-User-ID is present, otherwise the client
// address. The identity is stored for the handlers and for request logs.
func Identify(trusted *TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id ratelimit.Identity
			if uid := strings.TrimSpace(r.Header.Get(UserIDHeader)); uid != "" {
				id = ratelimit.UserIdentity(uid)
			} else {
				id = ratelimit.AddressIdentity(ClientIP(r, trusted))
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			ctx = logger.WithClient(ctx, id.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identityFromContext returns the identity stored by Identify. Requests that
// bypassed the middleware share the unknown-address bucket.
func identityFromContext(ctx context.Context) ratelimit.Identity {
	if id, ok := ctx.Value(identityKey).(ratelimit.Identity); ok {
		return id
	}
	return ratelimit.AddressIdentity("")
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

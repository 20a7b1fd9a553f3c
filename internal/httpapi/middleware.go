package httpapi

import (
	"context"
	"net/http"
	"strconv"
)

type contextKey string

const userIDKey contextKey = "user_id"

// HeaderAuthMiddleware trusts the X-User-ID header set by the edge proxy.
// Requests without it proceed unauthenticated; handlers that need an identity
// reject them.
func HeaderAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-User-ID"); raw != "" {
			if userID, err := strconv.ParseInt(raw, 10, 64); err == nil && userID > 0 {
				r = r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func userIDFromContext(ctx context.Context) int64 {
	if userID, ok := ctx.Value(userIDKey).(int64); ok {
		return userID
	}
	return 0
}

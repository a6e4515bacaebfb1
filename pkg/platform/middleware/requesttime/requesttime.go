// Package requesttime pins a single "now" per request so session expiry,
// reservation timestamps and provenance metadata all agree.
package requesttime

import (
	"net/http"
	"time"

	"eligo/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

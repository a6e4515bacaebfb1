package testutil

import (
	"net/http"
	"time"

	"eligo/pkg/requestcontext"
)

// WithRequestTime pins the request clock, as the requesttime middleware does.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithClientIP sets the client address the rate limiter keys on.
func WithClientIP(req *http.Request, ip string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, "testutil"))
}

// WithBearer sets an Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

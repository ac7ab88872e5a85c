package testutil

import (
	"net/http"
	"time"

	"showcase/pkg/requestcontext"
)

// WithAdmin marks the request as authenticated by admin middleware.
func WithAdmin(req *http.Request, subject string) *http.Request {
	return req.WithContext(requestcontext.WithAdmin(req.Context(), subject))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

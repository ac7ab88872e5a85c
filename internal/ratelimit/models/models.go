package models

import (
	"time"

	dErrors "showcase/pkg/domain-errors"
)

// EndpointClass groups routes that share a request budget.
type EndpointClass string

const (
	// ClassSync: upstream sync triggers (10 req/min) - POST /admin/profiles/{id}/sync
	ClassSync EndpointClass = "sync"
	// ClassRead: cached reads (120 req/min) - GET /profiles, GET /profiles/{id}
	ClassRead EndpointClass = "read"
	// ClassStream: push stream connects (20 req/min) - GET /events, GET /events/ws
	ClassStream EndpointClass = "stream"
)

// IsValid checks if the endpoint class is one of the supported enum values.
func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassSync, ClassRead, ClassStream:
		return true
	}
	return false
}

// ParseEndpointClass validates s as an endpoint class.
func ParseEndpointClass(s string) (EndpointClass, error) {
	c := EndpointClass(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid endpoint class: "+s)
	}
	return c, nil
}

// Limit is the request budget of one class.
type Limit struct {
	RequestsPerWindow int
	Window            time.Duration
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// RateLimitExceededResponse is the API response when rate limit is exceeded.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"` // seconds
}

package source

import (
	"errors"
	"fmt"
)

// Category is the normalized failure taxonomy for upstream calls.
type Category string

const (
	// CategoryTimeout: the call exceeded its deadline.
	CategoryTimeout Category = "timeout"

	// CategoryNetwork: the request never got a response.
	CategoryNetwork Category = "network"

	// CategoryRateLimited: upstream answered 429.
	CategoryRateLimited Category = "rate_limited"

	// CategoryOutage: upstream answered 5xx, or the breaker is open.
	CategoryOutage Category = "outage"

	// CategoryNotFound: the subject does not exist upstream.
	CategoryNotFound Category = "not_found"

	// CategoryBadRequest: upstream rejected the request (4xx other than 404/429).
	CategoryBadRequest Category = "bad_request"

	// CategoryBadData: the response envelope could not be decoded.
	CategoryBadData Category = "bad_data"
)

// Error wraps an upstream failure with its category.
type Error struct {
	Category   Category
	Op         string
	Status     int
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("source %s [%s]: %s", e.Op, e.Category, e.Message)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError builds an Error; retryability follows from the category.
func NewError(category Category, op, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Op:         op,
		Message:    message,
		Underlying: underlying,
		Retryable:  isRetryableCategory(category),
	}
}

func isRetryableCategory(c Category) bool {
	switch c {
	case CategoryTimeout, CategoryNetwork, CategoryRateLimited, CategoryOutage:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsNotFound reports whether err means the subject does not exist upstream.
func IsNotFound(err error) bool {
	return CategoryOf(err) == CategoryNotFound
}

// CategoryOf extracts the category, or "" for foreign errors.
func CategoryOf(err error) Category {
	var se *Error
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

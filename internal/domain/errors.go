package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrRateLimited is returned when a principal exhausted its window.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrRateLimiterUnavailable means the counter store could not be reached.
	// It is never reported as "over limit".
	ErrRateLimiterUnavailable = errors.New("rate limiter unavailable")
	// ErrPublish marks a broker write that did not happen. It never leaves the publisher.
	ErrPublish = errors.New("publish failed")
	// ErrEmailTransport marks a terminal failure of the outbound email transport.
	ErrEmailTransport = errors.New("email transport failure")
)

// RateLimitExceededError carries how long the caller has to wait for a fresh window.
type RateLimitExceededError struct {
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitExceededError) Unwrap() error { return ErrRateLimited }

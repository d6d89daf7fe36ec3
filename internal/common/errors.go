// Package common defines shared constants and sentinel errors used across
// client and server layers of voiceauth. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Auth flow outcomes. These are expected results, not faults.
	ErrRateLimited          = errors.New("rate limited")
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrAccountLocked        = errors.New("account locked")
	ErrNotVerified          = errors.New("account not verified")
	ErrAlreadyVerified      = errors.New("account already verified")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrDeliveryFailure      = errors.New("delivery failure")
	ErrConflict             = errors.New("conflict")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)

// AuthError is an expected, user-recoverable outcome of an auth flow.
// Kind is one of the sentinels above; the remaining fields are optional
// details a front-end may show to a legitimate user.
type AuthError struct {
	Kind    error
	Message string

	// RemainingAttempts is set when the caller may be told how many tries
	// are left in the current window.
	RemainingAttempts *int

	// LockedUntil is set for ErrAccountLocked.
	LockedUntil *time.Time

	// RetryAfter is the window length for ErrRateLimited.
	RetryAfter time.Duration
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Kind
}

// NewAuthError builds an AuthError of the given kind.
func NewAuthError(kind error, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

// WithRemaining attaches a remaining-attempts count.
func (e *AuthError) WithRemaining(n int) *AuthError {
	e.RemainingAttempts = &n
	return e
}

// WithLockedUntil attaches the lock expiry time.
func (e *AuthError) WithLockedUntil(t time.Time) *AuthError {
	e.LockedUntil = &t
	return e
}

// WithRetryAfter attaches the rate-limit window.
func (e *AuthError) WithRetryAfter(d time.Duration) *AuthError {
	e.RetryAfter = d
	return e
}

// AsAuthError unwraps err into an *AuthError if it is one.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Package common contains shared constants and sentinel errors used across
// voiceauth components.
package common

const (
	// AuthorizationHeaderName carries the bearer token on inbound requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the token in the Authorization header.
	BearerPrefix = "Bearer "

	// RemainingAttemptsHeaderName reports how many attempts are left in the
	// current rate-limit window.
	RemainingAttemptsHeaderName = "X-Remaining-Attempts"
)

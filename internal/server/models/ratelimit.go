package models

import "time"

// Action names a rate-limited operation. Counters for different actions
// are independent even for the same identifier.
type Action string

const (
	ActionRegisterAttempt Action = "register_attempt"
	ActionLoginAttempt    Action = "login_attempt"
	ActionEmailSend       Action = "email_send"
	ActionVerifyAttempt   Action = "verify_attempt"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionRegisterAttempt, ActionLoginAttempt, ActionEmailSend, ActionVerifyAttempt:
		return true
	}
	return false
}

func (a Action) String() string { return string(a) }

// Policy bounds an action to MaxAttempts per rolling Window.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

// RateLimitCounter counts attempts of Action by Identifier (an IP address
// or an email) since FirstAttemptAt.
type RateLimitCounter struct {
	Identifier     string
	Action         Action
	AttemptCount   int
	FirstAttemptAt time.Time
	LastAttemptAt  time.Time
}

// WindowStart is the earliest FirstAttemptAt still considered live at now.
func WindowStart(now time.Time, window time.Duration) time.Time {
	return now.Add(-window)
}

// Live reports whether the counter's window is still open at now.
func (c *RateLimitCounter) Live(now time.Time, window time.Duration) bool {
	return c.FirstAttemptAt.After(WindowStart(now, window))
}

package models

import "time"

// User is one account, keyed by its normalized email.
// PasswordHash is never serialized or logged.
type User struct {
	ID                  string
	Email               string
	PasswordHash        string `json:"-"`
	IsVerified          bool
	IsLocked            bool
	LockedUntil         *time.Time
	FailedLoginAttempts int
	CreatedAt           time.Time
}

// LockActive reports whether the stored lock is still in force at now.
// A lock without an expiry never lapses on its own.
func (u *User) LockActive(now time.Time) bool {
	if !u.IsLocked {
		return false
	}
	if u.LockedUntil == nil {
		return true
	}
	return !u.LockedUntil.Before(now)
}

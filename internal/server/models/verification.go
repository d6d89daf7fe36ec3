package models

import "time"

// Purpose scopes a verification code to the flow that issued it.
type Purpose string

const (
	PurposeRegister Purpose = "register"
	PurposeLogin    Purpose = "login"
)

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeRegister, PurposeLogin:
		return true
	}
	return false
}

func (p Purpose) String() string { return string(p) }

// VerificationCode is a single-use code mailed to Email. Only one row
// exists per (Email, Purpose).
type VerificationCode struct {
	ID        string
	Email     string
	Code      string
	Purpose   Purpose
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Usable reports whether the code may still be consumed at now.
func (c *VerificationCode) Usable(now time.Time) bool {
	return !c.Used && c.ExpiresAt.After(now)
}

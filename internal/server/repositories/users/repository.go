// Package users declares the credential store: persistence of account
// identity, password hash, verification and lock state.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/server/models"
)

// Repository is the narrow API through which account rows are mutated.
// Emails passed in are expected to be normalized already.
type Repository interface {
	// GetUserByEmail returns common.ErrorNotFound when no row matches.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns common.ErrorNotFound when no row matches.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// CreateOrUpdatePassword inserts an unverified user, or replaces the
	// password hash of an existing unverified one. A verified row is left
	// untouched and common.ErrConflict is returned.
	CreateOrUpdatePassword(ctx context.Context, email, passwordHash string, now time.Time) (*models.User, error)

	MarkVerified(ctx context.Context, id string) error

	// RecordFailedLogin increments the failure counter and returns its new value.
	RecordFailedLogin(ctx context.Context, id string) (int, error)

	ResetFailedLogins(ctx context.Context, id string) error

	// Lock sets the lock flag and its expiry. Locking twice only moves the expiry.
	Lock(ctx context.Context, id string, until time.Time) error

	// Unlock clears the lock and the failure counter if the lock expired
	// before now. It reports whether anything changed.
	Unlock(ctx context.Context, id string, now time.Time) (bool, error)
}

package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/clockx"
	"github.com/dmitrijs2005/voiceauth/internal/dbx"
	"github.com/dmitrijs2005/voiceauth/internal/server/models"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/repomanager"
)

type LockState int

const (
	LockOpen LockState = iota
	LockLocked
)

func (s LockState) String() string {
	if s == LockLocked {
		return "locked"
	}
	return "open"
}

// Lockout locks an account after too many consecutive failed logins.
// Expired locks are cleared lazily when the account is next checked.
type Lockout struct {
	db        dbx.Transactor
	repos     repomanager.RepositoryManager
	clock     clockx.Clock
	maxFailed int
	lockFor   time.Duration
}

func NewLockout(db dbx.Transactor, repos repomanager.RepositoryManager, clock clockx.Clock, maxFailed int, lockFor time.Duration) *Lockout {
	return &Lockout{db: db, repos: repos, clock: clock, maxFailed: maxFailed, lockFor: lockFor}
}

// CheckAndUnlock reports whether user may attempt to log in, clearing an
// expired lock. user is updated to reflect a cleared lock.
func (l *Lockout) CheckAndUnlock(ctx context.Context, user *models.User) (LockState, error) {
	if !user.IsLocked {
		return LockOpen, nil
	}

	now := l.clock.Now()
	if user.LockedUntil == nil || !user.LockedUntil.Before(now) {
		return LockLocked, nil
	}

	// A false result means a concurrent request already cleared it.
	if _, err := l.repos.Users(l.db.Conn()).Unlock(ctx, user.ID, now); err != nil {
		return LockLocked, err
	}

	user.IsLocked = false
	user.LockedUntil = nil
	user.FailedLoginAttempts = 0
	return LockOpen, nil
}

// RegisterFailure counts a failed password check and locks the account
// once the threshold is reached. user is updated with the new state.
func (l *Lockout) RegisterFailure(ctx context.Context, user *models.User) (bool, time.Time, error) {
	var (
		attempts int
		until    time.Time
	)

	err := l.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := l.repos.Users(tx)

		var err error
		attempts, err = repo.RecordFailedLogin(ctx, user.ID)
		if err != nil {
			return err
		}
		if attempts < l.maxFailed {
			return nil
		}

		until = l.clock.Now().Add(l.lockFor)
		return repo.Lock(ctx, user.ID, until)
	})
	if err != nil {
		return false, time.Time{}, err
	}

	user.FailedLoginAttempts = attempts
	if until.IsZero() {
		return false, time.Time{}, nil
	}
	user.IsLocked = true
	user.LockedUntil = &until
	return true, until, nil
}

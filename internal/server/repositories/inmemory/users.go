package inmemory

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/common"
	"github.com/dmitrijs2005/voiceauth/internal/server/models"
	"github.com/google/uuid"
)

type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.emails[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyUser(r.s.users[id]), nil
}

func (r *UserRepository) GetUserByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) CreateOrUpdatePassword(_ context.Context, email, passwordHash string, now time.Time) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if id, ok := r.s.emails[email]; ok {
		u := r.s.users[id]
		if u.IsVerified {
			return nil, common.ErrConflict
		}
		u.PasswordHash = passwordHash
		return copyUser(u), nil
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}
	r.s.users[u.ID] = u
	r.s.emails[email] = u.ID
	return copyUser(u), nil
}

// update applies fn to the stored user with the given id.
func (r *UserRepository) update(id string, fn func(u *models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(u)
	return nil
}

func (r *UserRepository) MarkVerified(_ context.Context, id string) error {
	return r.update(id, func(u *models.User) { u.IsVerified = true })
}

func (r *UserRepository) RecordFailedLogin(_ context.Context, id string) (int, error) {
	var n int
	err := r.update(id, func(u *models.User) {
		u.FailedLoginAttempts++
		n = u.FailedLoginAttempts
	})
	return n, err
}

func (r *UserRepository) ResetFailedLogins(_ context.Context, id string) error {
	err := r.update(id, func(u *models.User) { u.FailedLoginAttempts = 0 })
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	return err
}

func (r *UserRepository) Lock(_ context.Context, id string, until time.Time) error {
	err := r.update(id, func(u *models.User) {
		u.IsLocked = true
		u.LockedUntil = &until
	})
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	return err
}

func (r *UserRepository) Unlock(_ context.Context, id string, now time.Time) (bool, error) {
	var changed bool
	err := r.update(id, func(u *models.User) {
		if u.IsLocked && u.LockedUntil != nil && u.LockedUntil.Before(now) {
			u.IsLocked = false
			u.LockedUntil = nil
			u.FailedLoginAttempts = 0
			changed = true
		}
	})
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	return changed, err
}

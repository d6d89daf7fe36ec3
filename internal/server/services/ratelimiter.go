package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/clockx"
	"github.com/dmitrijs2005/voiceauth/internal/common"
	"github.com/dmitrijs2005/voiceauth/internal/dbx"
	"github.com/dmitrijs2005/voiceauth/internal/server/models"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/repomanager"
)

// Decision is the outcome of a rate-limit check. Remaining counts the
// attempts left after the one being checked.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter counts attempts per (identifier, action) in the shared store.
type RateLimiter struct {
	db    dbx.Transactor
	repos repomanager.RepositoryManager
	clock clockx.Clock
}

func NewRateLimiter(db dbx.Transactor, repos repomanager.RepositoryManager, clock clockx.Clock) *RateLimiter {
	return &RateLimiter{db: db, repos: repos, clock: clock}
}

// Evaluate reads the live counter without changing it.
func (r *RateLimiter) Evaluate(ctx context.Context, identifier string, action models.Action, policy models.Policy) (Decision, error) {
	now := r.clock.Now()

	counter, err := r.repos.RateLimits(r.db.Conn()).Get(ctx, identifier, action, models.WindowStart(now, policy.Window))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return Decision{Allowed: true, Remaining: policy.MaxAttempts - 1}, nil
		}
		return Decision{}, err
	}

	if counter.AttemptCount >= policy.MaxAttempts {
		retry := counter.FirstAttemptAt.Add(policy.Window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retry}, nil
	}

	return Decision{Allowed: true, Remaining: policy.MaxAttempts - counter.AttemptCount - 1}, nil
}

// Check reports whether another attempt is allowed and how many remain
// after it.
func (r *RateLimiter) Check(ctx context.Context, identifier string, action models.Action, policy models.Policy) (bool, int, error) {
	d, err := r.Evaluate(ctx, identifier, action, policy)
	return d.Allowed, d.Remaining, err
}

// Reserve takes one attempt from the quota in a single store operation.
// A denied reservation leaves the counter unchanged. Remaining counts the
// attempts left after this one.
func (r *RateLimiter) Reserve(ctx context.Context, identifier string, action models.Action, policy models.Policy) (Decision, error) {
	now := r.clock.Now()
	repo := r.repos.RateLimits(r.db.Conn())

	count, ok, err := repo.Increment(ctx, identifier, action, now, models.WindowStart(now, policy.Window), policy.MaxAttempts)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		return Decision{Allowed: true, Remaining: policy.MaxAttempts - count}, nil
	}

	d, err := r.Evaluate(ctx, identifier, action, policy)
	if err != nil {
		return Decision{}, err
	}
	d.Allowed = false
	d.Remaining = 0
	return d, nil
}

// Reset drops the counter.
func (r *RateLimiter) Reset(ctx context.Context, identifier string, action models.Action) error {
	return r.repos.RateLimits(r.db.Conn()).Delete(ctx, identifier, action)
}

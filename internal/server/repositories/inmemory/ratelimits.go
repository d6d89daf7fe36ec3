package inmemory

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/common"
	"github.com/dmitrijs2005/voiceauth/internal/server/models"
)

type RateLimitRepository struct {
	s *Store
}

func checkAction(a models.Action) error {
	if !a.Valid() {
		return fmt.Errorf("%w: unknown action %q", common.ErrorValidation, a)
	}
	return nil
}

func (r *RateLimitRepository) Get(_ context.Context, identifier string, action models.Action, windowStart time.Time) (*models.RateLimitCounter, error) {
	if err := checkAction(action); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.limits[limitKey{identifier: identifier, action: action}]
	if !ok || !c.FirstAttemptAt.After(windowStart) {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *RateLimitRepository) Increment(_ context.Context, identifier string, action models.Action, now, windowStart time.Time, limit int) (int, bool, error) {
	if err := checkAction(action); err != nil {
		return 0, false, err
	}
	if limit < 1 {
		return 0, false, nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := limitKey{identifier: identifier, action: action}
	c, ok := r.s.limits[key]
	if !ok || !c.FirstAttemptAt.After(windowStart) {
		c = &models.RateLimitCounter{
			Identifier:     identifier,
			Action:         action,
			FirstAttemptAt: now,
		}
		r.s.limits[key] = c
	} else if c.AttemptCount >= limit {
		return 0, false, nil
	}
	c.AttemptCount++
	c.LastAttemptAt = now
	return c.AttemptCount, true, nil
}

func (r *RateLimitRepository) Delete(_ context.Context, identifier string, action models.Action) error {
	if err := checkAction(action); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.limits, limitKey{identifier: identifier, action: action})
	return nil
}

package ratelimits

import (
	"context"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/server/models"
)

// Repository keeps one attempt counter per (identifier, action). A counter
// whose first attempt is not after windowStart is treated as absent.
type Repository interface {
	Get(ctx context.Context, identifier string, action models.Action, windowStart time.Time) (*models.RateLimitCounter, error)
	// Increment records an attempt at now and returns the new count. A stale
	// counter restarts at 1 with first attempt now. A live counter already at
	// limit is left untouched and ok is false.
	Increment(ctx context.Context, identifier string, action models.Action, now, windowStart time.Time, limit int) (count int, ok bool, err error)
	Delete(ctx context.Context, identifier string, action models.Action) error
}

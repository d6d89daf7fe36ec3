package verificationcodes

import (
	"context"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/server/models"
)

// Repository stores one live verification code per (email, purpose).
type Repository interface {
	// Replace writes code as the only code for its (email, purpose),
	// discarding any previous one.
	Replace(ctx context.Context, code *models.VerificationCode) error
	// Consume marks the matching unused, unexpired code as used and reports
	// whether exactly one code was consumed.
	Consume(ctx context.Context, email, code string, purpose models.Purpose, now time.Time) (bool, error)
	Get(ctx context.Context, email string, purpose models.Purpose) (*models.VerificationCode, error)
}

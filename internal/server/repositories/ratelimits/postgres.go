package ratelimits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/common"
	"github.com/dmitrijs2005/voiceauth/internal/dbx"
	"github.com/dmitrijs2005/voiceauth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func checkAction(a models.Action) error {
	if !a.Valid() {
		return fmt.Errorf("%w: unknown action %q", common.ErrorValidation, a)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, identifier string, action models.Action, windowStart time.Time) (*models.RateLimitCounter, error) {
	if err := checkAction(action); err != nil {
		return nil, err
	}

	query := `SELECT identifier, action_type, attempt_count, first_attempt_at, last_attempt_at
		FROM rate_limits
		WHERE identifier = $1 AND action_type = $2 AND first_attempt_at > $3`

	c := &models.RateLimitCounter{}
	var a string
	err := r.db.QueryRowContext(ctx, query, identifier, action.String(), windowStart).
		Scan(&c.Identifier, &a, &c.AttemptCount, &c.FirstAttemptAt, &c.LastAttemptAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.Action = models.Action(a)
	return c, nil
}

func (r *PostgresRepository) Increment(ctx context.Context, identifier string, action models.Action, now, windowStart time.Time, limit int) (int, bool, error) {
	if err := checkAction(action); err != nil {
		return 0, false, err
	}
	if limit < 1 {
		return 0, false, nil
	}

	// Window reset and increment happen in the conflict branch so that
	// concurrent first attempts land on the same row. The conflict WHERE
	// runs under the row lock, so a full live counter yields no row.
	query := `INSERT INTO rate_limits (identifier, action_type, attempt_count, first_attempt_at, last_attempt_at)
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (identifier, action_type) DO UPDATE SET
			attempt_count = CASE WHEN rate_limits.first_attempt_at > $4
				THEN rate_limits.attempt_count + 1 ELSE 1 END,
			first_attempt_at = CASE WHEN rate_limits.first_attempt_at > $4
				THEN rate_limits.first_attempt_at ELSE EXCLUDED.first_attempt_at END,
			last_attempt_at = EXCLUDED.last_attempt_at
		WHERE rate_limits.first_attempt_at <= $4 OR rate_limits.attempt_count < $5
		RETURNING attempt_count`

	var count int
	err := r.db.QueryRowContext(ctx, query, identifier, action.String(), now, windowStart, limit).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("db error: %w", err)
	}
	return count, true, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, identifier string, action models.Action) error {
	if err := checkAction(action); err != nil {
		return err
	}

	query := `DELETE FROM rate_limits WHERE identifier = $1 AND action_type = $2`
	if _, err := r.db.ExecContext(ctx, query, identifier, action.String()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

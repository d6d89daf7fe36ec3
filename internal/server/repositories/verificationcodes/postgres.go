package verificationcodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/common"
	"github.com/dmitrijs2005/voiceauth/internal/dbx"
	"github.com/dmitrijs2005/voiceauth/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Replace(ctx context.Context, code *models.VerificationCode) error {
	if !code.Purpose.Valid() {
		return fmt.Errorf("%w: unknown purpose %q", common.ErrorValidation, code.Purpose)
	}
	if code.ID == "" {
		code.ID = uuid.NewString()
	}

	query := `INSERT INTO verification_codes (id, email, code, purpose, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		ON CONFLICT (email, purpose) DO UPDATE SET
			id = EXCLUDED.id,
			code = EXCLUDED.code,
			expires_at = EXCLUDED.expires_at,
			used = FALSE,
			created_at = EXCLUDED.created_at`

	_, err := r.db.ExecContext(ctx, query, code.ID, code.Email, code.Code, code.Purpose.String(), code.ExpiresAt, code.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	code.Used = false
	return nil
}

func (r *PostgresRepository) Consume(ctx context.Context, email, code string, purpose models.Purpose, now time.Time) (bool, error) {
	if !purpose.Valid() {
		return false, fmt.Errorf("%w: unknown purpose %q", common.ErrorValidation, purpose)
	}

	query := `UPDATE verification_codes SET used = TRUE
		WHERE email = $1 AND code = $2 AND purpose = $3 AND used = FALSE AND expires_at > $4`

	res, err := r.db.ExecContext(ctx, query, email, code, purpose.String(), now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Get(ctx context.Context, email string, purpose models.Purpose) (*models.VerificationCode, error) {
	query := `SELECT id, email, code, purpose, expires_at, used, created_at
		FROM verification_codes WHERE email = $1 AND purpose = $2`

	c := &models.VerificationCode{}
	var p string
	err := r.db.QueryRowContext(ctx, query, email, purpose.String()).
		Scan(&c.ID, &c.Email, &c.Code, &p, &c.ExpiresAt, &c.Used, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.Purpose = models.Purpose(p)
	return c, nil
}

package users

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

const userColumns = `id, email, password_hash, is_verified, is_locked, locked_until, failed_login_attempts, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var lockedUntil sql.NullTime

	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.IsVerified,
		&user.IsLocked, &lockedUntil, &user.FailedLoginAttempts, &user.CreatedAt)
	if err != nil {
		return nil, err
	}

	if lockedUntil.Valid {
		t := lockedUntil.Time
		user.LockedUntil = &t
	}
	return user, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) CreateOrUpdatePassword(ctx context.Context, email, passwordHash string, now time.Time) (*models.User, error) {
	// The WHERE on the conflict branch makes a verified row produce no
	// RETURNING row, so the duplicate check and the write are one statement.
	query := `INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash
		WHERE users.is_verified = FALSE
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, uuid.NewString(), email, passwordHash, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	n, err := r.exec(ctx, `UPDATE users SET is_verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) RecordFailedLogin(ctx context.Context, id string) (int, error) {
	query := `UPDATE users SET failed_login_attempts = failed_login_attempts + 1
		WHERE id = $1
		RETURNING failed_login_attempts`

	var attempts int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return attempts, nil
}

func (r *PostgresRepository) ResetFailedLogins(ctx context.Context, id string) error {
	_, err := r.exec(ctx, `UPDATE users SET failed_login_attempts = 0 WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) Lock(ctx context.Context, id string, until time.Time) error {
	_, err := r.exec(ctx, `UPDATE users SET is_locked = TRUE, locked_until = $2 WHERE id = $1`, id, until)
	return err
}

func (r *PostgresRepository) Unlock(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `UPDATE users SET is_locked = FALSE, locked_until = NULL, failed_login_attempts = 0
		WHERE id = $1 AND is_locked = TRUE AND locked_until IS NOT NULL AND locked_until < $2`

	n, err := r.exec(ctx, query, id, now)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

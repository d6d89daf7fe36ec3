package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/clockx"
	"github.com/dmitrijs2005/voiceauth/internal/common"
	"github.com/dmitrijs2005/voiceauth/internal/dbx"
	"github.com/dmitrijs2005/voiceauth/internal/server/auth"
	"github.com/dmitrijs2005/voiceauth/internal/server/models"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/repomanager"
)

// CodeRegistry issues and consumes single-use verification codes.
type CodeRegistry struct {
	db       dbx.Transactor
	repos    repomanager.RepositoryManager
	clock    clockx.Clock
	ttl      time.Duration
	generate auth.CodeGenerator
}

// NewCodeRegistry returns a registry whose codes live for ttl. A nil
// generate uses auth.GenerateCode.
func NewCodeRegistry(db dbx.Transactor, repos repomanager.RepositoryManager, clock clockx.Clock, ttl time.Duration, generate auth.CodeGenerator) *CodeRegistry {
	if generate == nil {
		generate = auth.GenerateCode
	}
	return &CodeRegistry{db: db, repos: repos, clock: clock, ttl: ttl, generate: generate}
}

// Issue creates a fresh code for (email, purpose), invalidating any code
// issued before it, and returns the plaintext code.
func (c *CodeRegistry) Issue(ctx context.Context, email string, purpose models.Purpose) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("%w: unknown purpose %q", common.ErrorValidation, purpose)
	}

	code, err := c.generate()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	now := c.clock.Now()
	err = c.repos.VerificationCodes(c.db.Conn()).Replace(ctx, &models.VerificationCode{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(c.ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// Verify consumes the code. It returns true at most once per issued code.
func (c *CodeRegistry) Verify(ctx context.Context, email, code string, purpose models.Purpose) (bool, error) {
	return c.verifyOn(ctx, c.db.Conn(), email, code, purpose)
}

func (c *CodeRegistry) verifyOn(ctx context.Context, db dbx.DBTX, email, code string, purpose models.Purpose) (bool, error) {
	return c.repos.VerificationCodes(db).Consume(ctx, email, code, purpose, c.clock.Now())
}

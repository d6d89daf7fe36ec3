package inmemory

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/common"
	"github.com/dmitrijs2005/voiceauth/internal/server/models"
	"github.com/google/uuid"
)

type CodeRepository struct {
	s *Store
}

func (r *CodeRepository) Replace(_ context.Context, code *models.VerificationCode) error {
	if !code.Purpose.Valid() {
		return fmt.Errorf("%w: unknown purpose %q", common.ErrorValidation, code.Purpose)
	}
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	code.Used = false

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *code
	r.s.codes[codeKey{email: code.Email, purpose: code.Purpose}] = &c
	return nil
}

func (r *CodeRepository) Consume(_ context.Context, email, code string, purpose models.Purpose, now time.Time) (bool, error) {
	if !purpose.Valid() {
		return false, fmt.Errorf("%w: unknown purpose %q", common.ErrorValidation, purpose)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.codes[codeKey{email: email, purpose: purpose}]
	if !ok || c.Code != code || !c.Usable(now) {
		return false, nil
	}
	c.Used = true
	return true, nil
}

func (r *CodeRepository) Get(_ context.Context, email string, purpose models.Purpose) (*models.VerificationCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.codes[codeKey{email: email, purpose: purpose}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

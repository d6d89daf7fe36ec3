// Package inmemory holds mutex-guarded repository implementations with the
// same conflict and at-most-once semantics as the PostgreSQL ones. The
// server uses them for local runs without a database and the service tests
// use them for end-to-end scenarios.
package inmemory

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/dbx"
	"github.com/dmitrijs2005/voiceauth/internal/server/models"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/ratelimits"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/verificationcodes"
)

type codeKey struct {
	email   string
	purpose models.Purpose
}

type limitKey struct {
	identifier string
	action     models.Action
}

// Store is the shared state behind every repository vended by Manager.
type Store struct {
	mu     sync.Mutex
	users  map[string]*models.User // by id
	emails map[string]string       // email -> id
	codes  map[codeKey]*models.VerificationCode
	limits map[limitKey]*models.RateLimitCounter

	// txMu serializes InTx units of work.
	txMu sync.Mutex
}

func NewStore() *Store {
	return &Store{
		users:  make(map[string]*models.User),
		emails: make(map[string]string),
		codes:  make(map[codeKey]*models.VerificationCode),
		limits: make(map[limitKey]*models.RateLimitCounter),
	}
}

// Manager implements repomanager.RepositoryManager over a Store. The db
// handle passed to the factories is ignored.
type Manager struct {
	store *Store
}

func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *Manager) Users(dbx.DBTX) users.Repository {
	return &UserRepository{s: m.store}
}

func (m *Manager) VerificationCodes(dbx.DBTX) verificationcodes.Repository {
	return &CodeRepository{s: m.store}
}

func (m *Manager) RateLimits(dbx.DBTX) ratelimits.Repository {
	return &RateLimitRepository{s: m.store}
}

// Transactor runs each unit of work while holding the store's transaction
// lock. There is no rollback.
type Transactor struct {
	store *Store
}

func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

func (t *Transactor) Conn() dbx.DBTX { return nil }

func (t *Transactor) InTx(ctx context.Context, fn dbx.TxFunc) error {
	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()
	return fn(ctx, nil)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.LockedUntil = copyTime(u.LockedUntil)
	return &c
}

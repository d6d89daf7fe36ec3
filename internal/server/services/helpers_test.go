package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/clockx"
	"github.com/dmitrijs2005/voiceauth/internal/common"
	"github.com/dmitrijs2005/voiceauth/internal/dbx"
	"github.com/dmitrijs2005/voiceauth/internal/logging"
	"github.com/dmitrijs2005/voiceauth/internal/server/auth"
	"github.com/dmitrijs2005/voiceauth/internal/server/config"
	"github.com/dmitrijs2005/voiceauth/internal/server/models"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/inmemory"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var t0 = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type sentCode struct {
	email string
	code  string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (f *fakeSender) Send(_ context.Context, email, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentCode{email: email, code: code})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSender) last(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no code was sent")
	return f.sent[len(f.sent)-1].code
}

type harness struct {
	svc    *AuthService
	store  *inmemory.Store
	repos  *inmemory.Manager
	tx     dbx.Transactor
	clock  *clockx.Fake
	sender *fakeSender
	cfg    *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BcryptCost = bcrypt.MinCost

	store := inmemory.NewStore()
	repos := inmemory.NewManager(store)
	tx := inmemory.NewTransactor(store)
	clock := clockx.NewFake(t0)
	sender := &fakeSender{}

	tokens, err := auth.NewTokenIssuer([]byte(cfg.SecretKey), cfg.TokenTTL, clock)
	require.NoError(t, err)

	return &harness{
		svc:    NewAuthService(tx, repos, cfg, tokens, sender, clock, logging.Nop{}),
		store:  store,
		repos:  repos,
		tx:     tx,
		clock:  clock,
		sender: sender,
		cfg:    cfg,
	}
}

func (h *harness) user(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := h.repos.Users(nil).GetUserByEmail(context.Background(), email)
	require.NoError(t, err)
	return u
}

func (h *harness) counter(identifier string, action models.Action, window time.Duration) int {
	c, err := h.repos.RateLimits(nil).Get(context.Background(), identifier, action, models.WindowStart(h.clock.Now(), window))
	if err != nil {
		return 0
	}
	return c.AttemptCount
}

// registerVerified runs register plus verify-register and returns the token.
func (h *harness) registerVerified(t *testing.T, ip, email, password string) string {
	t.Helper()
	ctx := context.Background()
	_, err := h.svc.Register(ctx, ip, email, password)
	require.NoError(t, err)
	res, err := h.svc.VerifyRegister(ctx, email, h.sender.last(t))
	require.NoError(t, err)
	return res.AccessToken
}

func requireKind(t *testing.T, err error, kind error) *common.AuthError {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	ae, ok := common.AsAuthError(err)
	require.True(t, ok, "expected *common.AuthError, got %T", err)
	return ae
}

var errStorage = errors.New("connection reset")

// brokenUsers fails every lookup by email.
type brokenUsers struct {
	users.Repository
}

func (brokenUsers) GetUserByEmail(context.Context, string) (*models.User, error) {
	return nil, errStorage
}

type brokenManager struct {
	*inmemory.Manager
}

func (m brokenManager) Users(db dbx.DBTX) users.Repository {
	return brokenUsers{Repository: m.Manager.Users(db)}
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/clockx"
	"github.com/dmitrijs2005/voiceauth/internal/server/models"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLockout(t *testing.T) (*Lockout, *inmemory.Manager, *clockx.Fake, *models.User) {
	t.Helper()
	store := inmemory.NewStore()
	repos := inmemory.NewManager(store)
	clock := clockx.NewFake(t0)

	u, err := repos.Users(nil).CreateOrUpdatePassword(context.Background(), "a@x.com", "hash", t0)
	require.NoError(t, err)

	return NewLockout(inmemory.NewTransactor(store), repos, clock, 5, 30*time.Minute), repos, clock, u
}

func TestLockout_LocksAtThresholdAndUnlocksLazily(t *testing.T) {
	ctx := context.Background()
	lo, repos, clock, u := newLockout(t)

	for i := 1; i < 5; i++ {
		locked, _, err := lo.RegisterFailure(ctx, u)
		require.NoError(t, err)
		assert.False(t, locked, "failure %d", i)
		assert.Equal(t, i, u.FailedLoginAttempts)
	}

	locked, until, err := lo.RegisterFailure(ctx, u)
	require.NoError(t, err)
	require.True(t, locked)
	assert.Equal(t, t0.Add(30*time.Minute), until)

	stored, err := repos.Users(nil).GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsLocked)
	require.NotNil(t, stored.LockedUntil)
	assert.Equal(t, until, *stored.LockedUntil)

	clock.Advance(29 * time.Minute)
	state, err := lo.CheckAndUnlock(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, LockLocked, state)

	clock.Advance(2 * time.Minute)
	state, err = lo.CheckAndUnlock(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, LockOpen, state)
	assert.False(t, stored.IsLocked)

	stored, err = repos.Users(nil).GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsLocked)
	assert.Nil(t, stored.LockedUntil)
	assert.Zero(t, stored.FailedLoginAttempts)
}

func TestLockout_OpenAccount(t *testing.T) {
	lo, _, _, u := newLockout(t)

	state, err := lo.CheckAndUnlock(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, LockOpen, state)
	assert.Equal(t, "open", state.String())
	assert.Equal(t, "locked", LockLocked.String())
}

func TestLockout_LockWithoutExpiryHolds(t *testing.T) {
	lo, _, clock, u := newLockout(t)
	u.IsLocked = true
	u.LockedUntil = nil
	clock.Advance(24 * time.Hour)

	state, err := lo.CheckAndUnlock(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, LockLocked, state)
}

func TestLockout_FailuresPastThresholdExtendLock(t *testing.T) {
	ctx := context.Background()
	lo, _, clock, u := newLockout(t)

	for i := 0; i < 5; i++ {
		_, _, err := lo.RegisterFailure(ctx, u)
		require.NoError(t, err)
	}
	clock.Advance(time.Minute)

	locked, until, err := lo.RegisterFailure(ctx, u)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Equal(t, t0.Add(31*time.Minute), until)
}

package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marketplace-auth/internal/model"
)

func TestMemoryStoreUsers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u := &model.User{Email: "a@example.com", PasswordHash: "d", Role: model.RoleUser}
	require.NoError(t, s.Create(ctx, u))
	assert.NotZero(t, u.ID)

	err := s.Create(ctx, &model.User{Email: "a@example.com", PasswordHash: "d2", Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrEmailExists)

	got, err := s.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	hash := "h"
	require.NoError(t, s.UpdateRefreshHash(ctx, u.ID, &hash))
	hash = "mutated"
	got, err = s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "h", *got.RefreshTokenHash, "store must not alias caller memory")

	require.NoError(t, s.UpdateRole(ctx, u.ID, model.RoleAdmin))
	got, _ = s.FindByID(ctx, u.ID)
	assert.Equal(t, model.RoleAdmin, got.Role)

	_, err = s.FindByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateRole(ctx, 999, model.RoleAdmin), ErrNotFound)
}

func TestMemoryStoreHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore().FindByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryResetsConsumeOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := &model.User{Email: "a@example.com", PasswordHash: "old", Role: model.RoleUser}
	require.NoError(t, s.Create(ctx, u))
	bound := "bound"
	require.NoError(t, s.UpdateRefreshHash(ctx, u.ID, &bound))

	now := time.Now().UTC()
	require.NoError(t, s.Resets().Create(ctx, &model.PasswordResetRequest{
		ID: "r", UserID: u.ID, TokenHash: "th", ExpiresAt: now.Add(time.Minute), CreatedAt: now,
	}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Resets().Consume(ctx, "th", now, "new"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	got, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	assert.Nil(t, got.RefreshTokenHash)
	assert.Zero(t, s.PendingResets())
}

func TestMemoryResetsExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := &model.User{Email: "a@example.com", PasswordHash: "old", Role: model.RoleUser}
	require.NoError(t, s.Create(ctx, u))

	now := time.Now().UTC()
	require.NoError(t, s.Resets().Create(ctx, &model.PasswordResetRequest{
		ID: "r", UserID: u.ID, TokenHash: "th", ExpiresAt: now, CreatedAt: now.Add(-time.Minute),
	}))

	_, err := s.Resets().Consume(ctx, "th", now.Add(time.Second), "new")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.Resets().DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n, "a request is still valid at its expiry instant")

	n, err = s.Resets().DeleteExpired(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

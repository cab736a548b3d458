package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/broker/models"
	"gatehouse/internal/sentinel"
	"gatehouse/pkg/testutil"
)

func newSession(token string, expiresAt time.Time) *models.AuthSession {
	return &models.AuthSession{
		Token:         token,
		ApplicationID: "app-1",
		RedirectURL:   "https://tenant.example/cb",
		State:         json.RawMessage(`{"k":"v"}`),
		ExpiresAt:     expiresAt,
		CreatedAt:     time.Now(),
	}
}

func TestCreateRejectsDuplicateToken(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	expires := time.Now().Add(30 * time.Minute)

	require.NoError(t, store.Create(ctx, newSession("tok-1", expires)))
	err := store.Create(ctx, newSession("tok-1", expires))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestConsumeHappyPath(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, newSession("tok-1", now.Add(time.Hour))))

	got, err := store.Consume(ctx, "tok-1", now)
	require.NoError(t, err)
	assert.Equal(t, "app-1", got.ApplicationID)
	assert.Equal(t, "https://tenant.example/cb", got.RedirectURL)
	assert.JSONEq(t, `{"k":"v"}`, string(got.State))
	assert.True(t, got.Consumed)
	require.NotNil(t, got.ConsumedAt)
}

func TestConsumeMisses(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	now := time.Now()

	_, err := store.Consume(ctx, "unknown", now)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.Create(ctx, newSession("expired", now.Add(-time.Minute))))
	_, err = store.Consume(ctx, "expired", now)
	assert.ErrorIs(t, err, sentinel.ErrExpired)

	require.NoError(t, store.Create(ctx, newSession("used", now.Add(time.Hour))))
	_, err = store.Consume(ctx, "used", now)
	require.NoError(t, err)
	_, err = store.Consume(ctx, "used", now)
	assert.ErrorIs(t, err, sentinel.ErrConsumed)
}

func TestConsumeExactlyOnceUnderConcurrency(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, newSession("contested", now.Add(time.Hour))))

	result := testutil.RunConcurrent(50, func(int) error {
		_, err := store.Consume(ctx, "contested", now)
		return err
	})

	assert.Equal(t, int32(1), result.Successes)
	assert.Equal(t, int32(49), result.Consumed)
	assert.Equal(t, int32(50), result.Total())
}

func TestDeleteExpired(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, newSession("old-1", now.Add(-time.Hour))))
	require.NoError(t, store.Create(ctx, newSession("old-2", now.Add(-time.Minute))))
	require.NoError(t, store.Create(ctx, newSession("live", now.Add(time.Hour))))

	deleted, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = store.FindByToken(ctx, "old-1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = store.FindByToken(ctx, "live")
	assert.NoError(t, err)
}

package cleanup_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/broker/models"
	sessionstore "gatehouse/internal/broker/store/session"
	"gatehouse/internal/broker/workers/cleanup"
)

func seedSession(t *testing.T, store *sessionstore.InMemoryStore, token string, expiresAt time.Time) {
	t.Helper()
	err := store.Create(context.Background(), &models.AuthSession{
		Token:         token,
		ApplicationID: "app-1",
		RedirectURL:   "https://tenant.example/cb",
		ExpiresAt:     expiresAt,
		CreatedAt:     time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
}

func TestRunOnceDeletesOnlyExpiredSessions(t *testing.T) {
	store := sessionstore.NewInMemory()
	seedSession(t, store, "expired-token-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", time.Now().Add(-time.Minute))
	seedSession(t, store, "live-token-bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", time.Now().Add(time.Hour))

	worker := cleanup.New(store)
	worker.RunOnce(context.Background())

	_, err := store.FindByToken(context.Background(), "expired-token-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	assert.Error(t, err)
	_, err = store.FindByToken(context.Background(), "live-token-bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	assert.NoError(t, err)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	store := sessionstore.NewInMemory()
	worker := cleanup.New(store, cleanup.WithInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestStartSweepsPeriodically(t *testing.T) {
	store := sessionstore.NewInMemory()
	seedSession(t, store, "expired-token-cccccccccccccccccccccccccccccc", time.Now().Add(-time.Minute))

	worker := cleanup.New(store, cleanup.WithInterval(5*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go worker.Start(ctx)

	require.Eventually(t, func() bool {
		_, err := store.FindByToken(context.Background(), "expired-token-cccccccccccccccccccccccccccccc")
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

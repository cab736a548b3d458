package membership

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/directory/models"
	"gatehouse/internal/sentinel"
)

func seed(t *testing.T, store *InMemory, userID, appID string, status models.MembershipStatus, startedAt time.Time) *models.UserMembership {
	t.Helper()
	m := &models.UserMembership{
		ID:            uuid.NewString(),
		UserID:        userID,
		ApplicationID: appID,
		Status:        status,
		StartedAt:     startedAt,
		CreatedAt:     startedAt,
		UpdatedAt:     startedAt,
	}
	require.NoError(t, store.Create(context.Background(), m))
	return m
}

func TestListActiveFiltersStatusAndApplication(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	now := time.Now()

	active := seed(t, store, "user-1", "app-1", models.MembershipActive, now)
	seed(t, store, "user-1", "app-1", models.MembershipCanceled, now)
	seed(t, store, "user-1", "app-2", models.MembershipActive, now)
	seed(t, store, "user-2", "app-1", models.MembershipActive, now)

	got, err := store.ListActive(ctx, "user-1", "app-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, active.ID, got[0].ID)
}

func TestListByUserSpansApplications(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	base := time.Now()

	seed(t, store, "user-1", "app-2", models.MembershipActive, base.Add(time.Minute))
	seed(t, store, "user-1", "app-1", models.MembershipPastDue, base)
	seed(t, store, "user-2", "app-1", models.MembershipActive, base)

	got, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "app-1", got[0].ApplicationID)
	assert.Equal(t, "app-2", got[1].ApplicationID)
}

func TestUpdateStatus(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	m := seed(t, store, "user-1", "app-1", models.MembershipActive, time.Now())

	require.NoError(t, store.UpdateStatus(ctx, m.ID, models.MembershipPastDue, time.Now()))

	got, err := store.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipPastDue, got.Status)

	err = store.UpdateStatus(ctx, uuid.NewString(), models.MembershipActive, time.Now())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCountActiveByApplication(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	now := time.Now()

	seed(t, store, "user-1", "app-1", models.MembershipActive, now)
	seed(t, store, "user-2", "app-1", models.MembershipActive, now)
	seed(t, store, "user-3", "app-1", models.MembershipCanceled, now)
	seed(t, store, "user-4", "app-2", models.MembershipActive, now)

	count, err := store.CountActiveByApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

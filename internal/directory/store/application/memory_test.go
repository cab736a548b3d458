package application

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

func newApp(t *testing.T, name, slug string) *models.Application {
	t.Helper()
	app, err := models.NewApplication(uuid.NewString(), name, slug, "", models.AppConfig{}, models.APIKeys{}, time.Now())
	require.NoError(t, err)
	return app
}

func TestCreateAndFind(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	app := newApp(t, "Acme Portal", "acme-portal")

	require.NoError(t, store.CreateIfSlugAvailable(ctx, app))

	byID, err := store.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.Slug, byID.Slug)

	bySlug, err := store.FindBySlug(ctx, "ACME-PORTAL")
	require.NoError(t, err)
	assert.Equal(t, app.ID, bySlug.ID)
}

func TestCreateDuplicateSlug(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	require.NoError(t, store.CreateIfSlugAvailable(ctx, newApp(t, "First", "shared-slug")))
	err := store.CreateIfSlugAvailable(ctx, newApp(t, "Second", "shared-slug"))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestFindMissing(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	_, err := store.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = store.FindBySlug(ctx, "nope")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestDeleteFreesSlug(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	app := newApp(t, "Ephemeral", "ephemeral")

	require.NoError(t, store.CreateIfSlugAvailable(ctx, app))
	require.NoError(t, store.Delete(ctx, app.ID))

	_, err := store.FindByID(ctx, app.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.CreateIfSlugAvailable(ctx, newApp(t, "Ephemeral Again", "ephemeral")))
}

func TestListOrdersByCreation(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	first := newApp(t, "First", "first")
	second := newApp(t, "Second", "second")
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	require.NoError(t, store.CreateIfSlugAvailable(ctx, second))
	require.NoError(t, store.CreateIfSlugAvailable(ctx, first))

	apps, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "first", apps[0].Slug)
	assert.Equal(t, "second", apps[1].Slug)
}

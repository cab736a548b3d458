package redirect

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/audit"
	dirmodels "gatehouse/internal/directory/models"
	"gatehouse/internal/directory/store/application"
	dErrors "gatehouse/pkg/domain-errors"
)

func seedApp(t *testing.T, store *application.InMemory, status dirmodels.ApplicationStatus, allowList []string) *dirmodels.Application {
	t.Helper()
	app := &dirmodels.Application{
		ID:        uuid.NewString(),
		Name:      "Tenant App",
		Slug:      "tenant-app-" + uuid.NewString()[:8],
		Status:    status,
		Config:    dirmodels.AppConfig{RedirectAllowList: allowList},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.CreateIfSlugAvailable(context.Background(), app))
	return app
}

func TestValidateExactMatch(t *testing.T) {
	apps := application.NewInMemory()
	app := seedApp(t, apps, dirmodels.StatusActive, []string{"https://tenant.example/cb"})
	v := New(apps)

	got, err := v.Validate(context.Background(), app.ID, "https://tenant.example/cb")
	require.NoError(t, err)
	assert.Equal(t, app.ID, got.ID)
}

func TestValidatePrefixOnSegmentBoundary(t *testing.T) {
	apps := application.NewInMemory()
	app := seedApp(t, apps, dirmodels.StatusActive, []string{"https://tenant.example/cb"})
	v := New(apps)
	ctx := context.Background()

	_, err := v.Validate(ctx, app.ID, "https://tenant.example/cb/done")
	assert.NoError(t, err)

	_, err = v.Validate(ctx, app.ID, "https://tenant.example/cb-evil")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRedirect))

	_, err = v.Validate(ctx, app.ID, "https://evil.example/cb")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRedirect))

	_, err = v.Validate(ctx, app.ID, "http://tenant.example/cb")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRedirect))
}

func TestValidateFailsClosed(t *testing.T) {
	apps := application.NewInMemory()
	v := New(apps)
	ctx := context.Background()

	_, err := v.Validate(ctx, uuid.NewString(), "https://tenant.example/cb")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRedirect), "unknown application must reject")

	inactive := seedApp(t, apps, dirmodels.StatusInactive, []string{"https://tenant.example/cb"})
	_, err = v.Validate(ctx, inactive.ID, "https://tenant.example/cb")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRedirect), "inactive application must reject")

	empty := seedApp(t, apps, dirmodels.StatusActive, nil)
	_, err = v.Validate(ctx, empty.ID, "https://tenant.example/cb")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRedirect), "empty allow-list must reject")
}

func TestValidateRejectionDoesNotLeakAllowList(t *testing.T) {
	apps := application.NewInMemory()
	app := seedApp(t, apps, dirmodels.StatusActive, []string{"https://secret-tenant.example/cb"})
	v := New(apps)

	_, err := v.Validate(context.Background(), app.ID, "https://attacker.example/cb")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-tenant.example")
}

func TestValidateEmitsAuditOnRejection(t *testing.T) {
	apps := application.NewInMemory()
	app := seedApp(t, apps, dirmodels.StatusActive, []string{"https://tenant.example/cb"})

	auditStore := audit.NewInMemoryStore()
	v := New(apps, WithAuditPublisher(audit.NewPublisher(auditStore)))

	_, err := v.Validate(context.Background(), app.ID, "https://attacker.example/cb")
	require.Error(t, err)

	events, err := auditStore.ListByApplication(context.Background(), app.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventRedirectRejected), events[0].Action)
	assert.Equal(t, "https://attacker.example/cb", events[0].AttemptedURL)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresPublicURL(t *testing.T) {
	t.Setenv("GATEHOUSE_PUBLIC_URL", "")
	t.Setenv("JWT_SIGNING_KEY", "test-key")

	_, err := Load()
	assert.ErrorContains(t, err, "GATEHOUSE_PUBLIC_URL")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GATEHOUSE_PUBLIC_URL", "https://auth.example.com/")
	t.Setenv("JWT_SIGNING_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "https://auth.example.com", cfg.PublicBaseURL)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, StoreMemory, cfg.SessionStoreBackend)
	assert.Equal(t, IdentityLocal, cfg.IdentityMode)
	assert.Equal(t, 5*time.Minute, cfg.SessionCleanupInterval)
}

func TestLoadPostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("GATEHOUSE_PUBLIC_URL", "https://auth.example.com")
	t.Setenv("JWT_SIGNING_KEY", "test-key")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadRedisSessionStoreRequiresRedisURL(t *testing.T) {
	t.Setenv("GATEHOUSE_PUBLIC_URL", "https://auth.example.com")
	t.Setenv("JWT_SIGNING_KEY", "test-key")
	t.Setenv("SESSION_STORE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "REDIS_URL")
}

func TestLoadRemoteIdentityRequiresEndpoint(t *testing.T) {
	t.Setenv("GATEHOUSE_PUBLIC_URL", "https://auth.example.com")
	t.Setenv("IDENTITY_MODE", "remote")
	t.Setenv("IDENTITY_BASE_URL", "")
	t.Setenv("IDENTITY_API_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "IDENTITY_BASE_URL")
}

func TestLoadRejectsInvalidCleanupInterval(t *testing.T) {
	t.Setenv("GATEHOUSE_PUBLIC_URL", "https://auth.example.com")
	t.Setenv("JWT_SIGNING_KEY", "test-key")
	t.Setenv("SESSION_CLEANUP_INTERVAL", "-1m")

	_, err := Load()
	assert.ErrorContains(t, err, "SESSION_CLEANUP_INTERVAL")
}

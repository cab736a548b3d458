package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Store backends supported for the directory and session stores.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Session store backends. Redis is only available for the session store;
// the directory always lives in memory or postgres.
const (
	SessionStoreRedis = "redis"
)

// Identity provider modes.
const (
	IdentityLocal  = "local"
	IdentityRemote = "remote"
)

// Server captures the full broker configuration.
type Server struct {
	Addr          string
	PublicBaseURL string
	Environment   string

	StoreBackend        string
	SessionStoreBackend string
	DatabaseURL         string
	RedisURL            string

	IdentityMode    string
	IdentityBaseURL string
	IdentityAPIKey  string
	JWTSigningKey   string

	SessionCleanupInterval time.Duration
	AuditKafkaBrokers      string
	AuditKafkaTopic        string
}

// Load builds a Server config from environment variables. Collaborator
// configuration is mandatory for the selected backends: a missing database
// URL, identity endpoint, or signing key is a startup error, never a silent
// default.
func Load() (Server, error) {
	cfg := Server{
		Addr:                   envOr("GATEHOUSE_ADDR", ":8080"),
		PublicBaseURL:          strings.TrimSuffix(os.Getenv("GATEHOUSE_PUBLIC_URL"), "/"),
		Environment:            envOr("GATEHOUSE_ENV", "development"),
		StoreBackend:           envOr("STORE_BACKEND", StoreMemory),
		SessionStoreBackend:    os.Getenv("SESSION_STORE_BACKEND"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisURL:               os.Getenv("REDIS_URL"),
		IdentityMode:           envOr("IDENTITY_MODE", IdentityLocal),
		IdentityBaseURL:        strings.TrimSuffix(os.Getenv("IDENTITY_BASE_URL"), "/"),
		IdentityAPIKey:         os.Getenv("IDENTITY_API_KEY"),
		JWTSigningKey:          os.Getenv("JWT_SIGNING_KEY"),
		SessionCleanupInterval: 5 * time.Minute,
		AuditKafkaBrokers:      os.Getenv("AUDIT_KAFKA_BROKERS"),
		AuditKafkaTopic:        envOr("AUDIT_KAFKA_TOPIC", "gatehouse.audit"),
	}

	if cfg.PublicBaseURL == "" {
		return Server{}, fmt.Errorf("GATEHOUSE_PUBLIC_URL is required: login URLs cannot be constructed without it")
	}
	if cfg.SessionStoreBackend == "" {
		cfg.SessionStoreBackend = cfg.StoreBackend
	}

	switch cfg.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Server{}, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return Server{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.SessionStoreBackend {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Server{}, fmt.Errorf("DATABASE_URL is required when SESSION_STORE_BACKEND=postgres")
		}
	case SessionStoreRedis:
		if cfg.RedisURL == "" {
			return Server{}, fmt.Errorf("REDIS_URL is required when SESSION_STORE_BACKEND=redis")
		}
	default:
		return Server{}, fmt.Errorf("unknown SESSION_STORE_BACKEND %q", cfg.SessionStoreBackend)
	}

	switch cfg.IdentityMode {
	case IdentityLocal:
		if cfg.JWTSigningKey == "" {
			return Server{}, fmt.Errorf("JWT_SIGNING_KEY is required when IDENTITY_MODE=local")
		}
	case IdentityRemote:
		if cfg.IdentityBaseURL == "" || cfg.IdentityAPIKey == "" {
			return Server{}, fmt.Errorf("IDENTITY_BASE_URL and IDENTITY_API_KEY are required when IDENTITY_MODE=remote")
		}
	default:
		return Server{}, fmt.Errorf("unknown IDENTITY_MODE %q", cfg.IdentityMode)
	}

	if raw := os.Getenv("SESSION_CLEANUP_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil || interval <= 0 {
			return Server{}, fmt.Errorf("invalid SESSION_CLEANUP_INTERVAL %q", raw)
		}
		cfg.SessionCleanupInterval = interval
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

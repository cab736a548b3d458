package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gatehouse/internal/broker/models"
	"gatehouse/internal/sentinel"
)

const (
	sessionKeyPrefix = "auth_session:"

	// consumedRetention keeps consumed sessions around briefly so replay
	// attempts surface as replays in logs instead of plain misses.
	consumedRetention = 10 * time.Minute
)

// sessionJSON is the Redis-serialized representation of an AuthSession.
type sessionJSON struct {
	Token         string          `json:"token"`
	ApplicationID string          `json:"application_id"`
	RedirectURL   string          `json:"redirect_url"`
	UserEmail     string          `json:"user_email,omitempty"`
	State         json.RawMessage `json:"state,omitempty"`
	ExpiresAt     int64           `json:"expires_at"`
	Consumed      bool            `json:"consumed"`
	ConsumedAt    *int64          `json:"consumed_at,omitempty"`
	CreatedAt     int64           `json:"created_at"`
	RemoteAddr    string          `json:"remote_addr,omitempty"`
	UserAgent     string          `json:"user_agent,omitempty"`
	Device        string          `json:"device,omitempty"`
}

func sessionToJSON(s *models.AuthSession) *sessionJSON {
	j := &sessionJSON{
		Token:         s.Token,
		ApplicationID: s.ApplicationID,
		RedirectURL:   s.RedirectURL,
		UserEmail:     s.UserEmail,
		State:         s.State,
		ExpiresAt:     s.ExpiresAt.UnixNano(),
		Consumed:      s.Consumed,
		CreatedAt:     s.CreatedAt.UnixNano(),
		RemoteAddr:    s.Meta.RemoteAddr,
		UserAgent:     s.Meta.UserAgent,
		Device:        s.Meta.Device,
	}
	if s.ConsumedAt != nil {
		ts := s.ConsumedAt.UnixNano()
		j.ConsumedAt = &ts
	}
	return j
}

func sessionFromJSON(j *sessionJSON) *models.AuthSession {
	s := &models.AuthSession{
		Token:         j.Token,
		ApplicationID: j.ApplicationID,
		RedirectURL:   j.RedirectURL,
		UserEmail:     j.UserEmail,
		State:         j.State,
		ExpiresAt:     time.Unix(0, j.ExpiresAt),
		Consumed:      j.Consumed,
		CreatedAt:     time.Unix(0, j.CreatedAt),
		Meta: models.RequestMeta{
			RemoteAddr: j.RemoteAddr,
			UserAgent:  j.UserAgent,
			Device:     j.Device,
		},
	}
	if j.ConsumedAt != nil {
		t := time.Unix(0, *j.ConsumedAt)
		s.ConsumedAt = &t
	}
	return s
}

// RedisStore persists sessions in Redis. Recommended for deployments where
// several broker instances share handshake state; key TTLs double as the
// expiry sweep.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed session store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

// Create persists a new session. SETNX enforces token uniqueness.
func (s *RedisStore) Create(ctx context.Context, session *models.AuthSession) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	data, err := json.Marshal(sessionToJSON(session))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	ok, err := s.client.SetNX(ctx, sessionKey(session.Token), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session token already exists: %w", sentinel.ErrConflict)
	}
	return nil
}

// FindByToken retrieves a session without consuming it.
func (s *RedisStore) FindByToken(ctx context.Context, token string) (*models.AuthSession, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	var j sessionJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return sessionFromJSON(&j), nil
}

// Consume atomically marks the session consumed under an optimistic lock.
// WATCH aborts the transaction when a concurrent completion claims the
// token first, and the retry then observes the consumed flag.
func (s *RedisStore) Consume(ctx context.Context, token string, now time.Time) (*models.AuthSession, error) {
	key := sessionKey(token)
	var result *models.AuthSession

	consume := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get session for consume: %w", err)
		}

		var j sessionJSON
		if err := json.Unmarshal([]byte(data), &j); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		session := sessionFromJSON(&j)

		if session.Consumed {
			return sentinel.ErrConsumed
		}
		if session.IsExpired(now) {
			return sentinel.ErrExpired
		}

		session.Consumed = true
		consumedAt := now
		session.ConsumedAt = &consumedAt

		newData, err := json.Marshal(sessionToJSON(session))
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, consumedRetention)
			return nil
		}); err != nil {
			return err
		}

		result = session
		return nil
	}

	for {
		err := s.client.Watch(ctx, consume, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

// DeleteExpired is a no-op for Redis: key TTLs already reap expired
// sessions. It exists for interface compatibility with the other backends.
func (s *RedisStore) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

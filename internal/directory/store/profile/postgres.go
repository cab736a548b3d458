package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"gatehouse/internal/directory/models"
	"gatehouse/internal/sentinel"
)

// PostgresStore persists profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed profile store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert creates or replaces the profile for its user ID.
func (s *PostgresStore) Upsert(ctx context.Context, p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal profile metadata: %w", err)
	}
	query := `
		INSERT INTO profiles (user_id, email, full_name, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET email = EXCLUDED.email, full_name = EXCLUDED.full_name, metadata = EXCLUDED.metadata, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, p.UserID, p.Email, p.FullName, metadata, p.CreatedAt, p.UpdatedAt); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// FindByUserID retrieves the profile for a user.
func (s *PostgresStore) FindByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	query := `
		SELECT user_id, email, full_name, metadata, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	var p models.Profile
	var metadata []byte
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID,
		&p.Email,
		&p.FullName,
		&metadata,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal profile metadata: %w", err)
		}
	}
	return &p, nil
}

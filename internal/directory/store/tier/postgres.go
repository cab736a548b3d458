package tier

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"gatehouse/internal/directory/models"
	"gatehouse/internal/sentinel"
)

// PostgresStore persists membership tiers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed tier store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateIfSlugAvailable atomically creates the tier if (application_id, slug)
// is not already taken.
func (s *PostgresStore) CreateIfSlugAvailable(ctx context.Context, t *models.MembershipTier) error {
	if t == nil {
		return fmt.Errorf("tier is required")
	}
	features, pricing, err := marshalTierFields(t)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO membership_tiers (id, application_id, slug, name, tier_level, features, pricing, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		t.ID,
		t.ApplicationID,
		t.Slug,
		t.Name,
		t.TierLevel,
		features,
		pricing,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tier slug must be unique per application: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create tier: %w", err)
	}
	return nil
}

// FindByID retrieves a tier by ID.
func (s *PostgresStore) FindByID(ctx context.Context, tierID string) (*models.MembershipTier, error) {
	t, err := scanTier(s.db.QueryRowContext(ctx, selectTier+` WHERE id = $1`, tierID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tier by id: %w", err)
	}
	return t, nil
}

// ListByApplication returns the application's tiers ordered by level.
func (s *PostgresStore) ListByApplication(ctx context.Context, applicationID string) ([]*models.MembershipTier, error) {
	rows, err := s.db.QueryContext(ctx, selectTier+` WHERE application_id = $1 ORDER BY tier_level, slug`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	defer rows.Close()

	var out []*models.MembershipTier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	return out, nil
}

// Update replaces mutable fields of an existing tier.
func (s *PostgresStore) Update(ctx context.Context, t *models.MembershipTier) error {
	if t == nil {
		return fmt.Errorf("tier is required")
	}
	features, pricing, err := marshalTierFields(t)
	if err != nil {
		return err
	}
	query := `
		UPDATE membership_tiers
		SET name = $2, tier_level = $3, features = $4, pricing = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, t.ID, t.Name, t.TierLevel, features, pricing, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update tier: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tier rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Delete removes a tier without cascading to memberships.
func (s *PostgresStore) Delete(ctx context.Context, tierID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM membership_tiers WHERE id = $1`, tierID)
	if err != nil {
		return fmt.Errorf("delete tier: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete tier rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const selectTier = `
	SELECT id, application_id, slug, name, tier_level, features, pricing, created_at, updated_at
	FROM membership_tiers`

type tierRow interface {
	Scan(dest ...any) error
}

func scanTier(row tierRow) (*models.MembershipTier, error) {
	var t models.MembershipTier
	var features, pricing []byte
	if err := row.Scan(
		&t.ID,
		&t.ApplicationID,
		&t.Slug,
		&t.Name,
		&t.TierLevel,
		&features,
		&pricing,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &t.Features); err != nil {
			return nil, fmt.Errorf("unmarshal tier features: %w", err)
		}
	}
	if len(pricing) > 0 {
		if err := json.Unmarshal(pricing, &t.Pricing); err != nil {
			return nil, fmt.Errorf("unmarshal tier pricing: %w", err)
		}
	}
	return &t, nil
}

func marshalTierFields(t *models.MembershipTier) (features, pricing []byte, err error) {
	if t.Features != nil {
		if features, err = json.Marshal(t.Features); err != nil {
			return nil, nil, fmt.Errorf("marshal tier features: %w", err)
		}
	}
	if t.Pricing != nil {
		if pricing, err = json.Marshal(t.Pricing); err != nil {
			return nil, nil, fmt.Errorf("marshal tier pricing: %w", err)
		}
	}
	return features, pricing, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatehouse/internal/directory/models"
	"gatehouse/internal/sentinel"
)

// PostgresStore persists memberships in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed membership store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create persists a new membership.
func (s *PostgresStore) Create(ctx context.Context, m *models.UserMembership) error {
	if m == nil {
		return fmt.Errorf("membership is required")
	}
	query := `
		INSERT INTO user_memberships (id, user_id, application_id, tier_id, status, started_at, ends_at, renewal_date, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID,
		m.UserID,
		m.ApplicationID,
		m.TierID,
		string(m.Status),
		m.StartedAt,
		m.EndsAt,
		m.RenewalDate,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

// FindByID retrieves a membership by ID.
func (s *PostgresStore) FindByID(ctx context.Context, membershipID string) (*models.UserMembership, error) {
	m, err := scanMembership(s.db.QueryRowContext(ctx, selectMembership+` WHERE id = $1`, membershipID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find membership by id: %w", err)
	}
	return m, nil
}

// ListActive returns the user's active memberships for one application.
func (s *PostgresStore) ListActive(ctx context.Context, userID, applicationID string) ([]*models.UserMembership, error) {
	query := selectMembership + ` WHERE user_id = $1 AND application_id = $2 AND status = 'active' ORDER BY started_at, id`
	return s.list(ctx, query, userID, applicationID)
}

// ListByUser returns every membership the user holds across applications.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*models.UserMembership, error) {
	query := selectMembership + ` WHERE user_id = $1 ORDER BY started_at, id`
	return s.list(ctx, query, userID)
}

// UpdateStatus transitions a membership's billing status.
func (s *PostgresStore) UpdateStatus(ctx context.Context, membershipID string, status models.MembershipStatus, now time.Time) error {
	query := `
		UPDATE user_memberships
		SET status = $2, updated_at = $3
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, membershipID, string(status), now)
	if err != nil {
		return fmt.Errorf("update membership status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update membership rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// CountActiveByApplication counts active memberships for the delete guard.
func (s *PostgresStore) CountActiveByApplication(ctx context.Context, applicationID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM user_memberships WHERE application_id = $1 AND status = 'active'`
	if err := s.db.QueryRowContext(ctx, query, applicationID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active memberships: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.UserMembership, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []*models.UserMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return out, nil
}

const selectMembership = `
	SELECT id, user_id, application_id, COALESCE(tier_id, ''), status, started_at, ends_at, renewal_date, created_at, updated_at
	FROM user_memberships`

type membershipRow interface {
	Scan(dest ...any) error
}

func scanMembership(row membershipRow) (*models.UserMembership, error) {
	var m models.UserMembership
	var status string
	if err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.ApplicationID,
		&m.TierID,
		&status,
		&m.StartedAt,
		&m.EndsAt,
		&m.RenewalDate,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.Status = models.MembershipStatus(status)
	return &m, nil
}

package application

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

// PostgresStore persists applications in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed application store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateIfSlugAvailable atomically creates the application if the slug is
// not already taken. Uniqueness is enforced by the slug index.
func (s *PostgresStore) CreateIfSlugAvailable(ctx context.Context, app *models.Application) error {
	if app == nil {
		return fmt.Errorf("application is required")
	}
	cfg, err := json.Marshal(app.Config)
	if err != nil {
		return fmt.Errorf("marshal application config: %w", err)
	}
	query := `
		INSERT INTO applications (id, name, slug, description, status, public_key, secret_key_hash, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		app.ID,
		app.Name,
		app.Slug,
		app.Description,
		string(app.Status),
		app.Keys.PublicKey,
		app.Keys.SecretKeyHash,
		cfg,
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("application slug must be unique: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// FindByID retrieves an application by ID.
func (s *PostgresStore) FindByID(ctx context.Context, applicationID string) (*models.Application, error) {
	app, err := scanApplication(s.db.QueryRowContext(ctx, selectApplication+` WHERE id = $1`, applicationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find application by id: %w", err)
	}
	return app, nil
}

// FindBySlug retrieves an application by its URL-safe slug.
func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*models.Application, error) {
	app, err := scanApplication(s.db.QueryRowContext(ctx, selectApplication+` WHERE lower(slug) = lower($1)`, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find application by slug: %w", err)
	}
	return app, nil
}

// List returns all applications ordered by creation time.
func (s *PostgresStore) List(ctx context.Context) ([]*models.Application, error) {
	rows, err := s.db.QueryContext(ctx, selectApplication+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return out, nil
}

// Update replaces mutable fields of an existing application.
func (s *PostgresStore) Update(ctx context.Context, app *models.Application) error {
	if app == nil {
		return fmt.Errorf("application is required")
	}
	cfg, err := json.Marshal(app.Config)
	if err != nil {
		return fmt.Errorf("marshal application config: %w", err)
	}
	query := `
		UPDATE applications
		SET name = $2, description = $3, status = $4, config = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		app.ID,
		app.Name,
		app.Description,
		string(app.Status),
		cfg,
		app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Delete removes an application.
func (s *PostgresStore) Delete(ctx context.Context, applicationID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, applicationID)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete application rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const selectApplication = `
	SELECT id, name, slug, description, status, public_key, secret_key_hash, config, created_at, updated_at
	FROM applications`

type applicationRow interface {
	Scan(dest ...any) error
}

func scanApplication(row applicationRow) (*models.Application, error) {
	var app models.Application
	var status string
	var cfg []byte
	if err := row.Scan(
		&app.ID,
		&app.Name,
		&app.Slug,
		&app.Description,
		&status,
		&app.Keys.PublicKey,
		&app.Keys.SecretKeyHash,
		&cfg,
		&app.CreatedAt,
		&app.UpdatedAt,
	); err != nil {
		return nil, err
	}
	app.Status = models.ApplicationStatus(status)
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &app.Config); err != nil {
			return nil, fmt.Errorf("unmarshal application config: %w", err)
		}
	}
	return &app, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"gatehouse/internal/broker/models"
	"gatehouse/internal/sentinel"
)

// PostgresStore persists sessions in PostgreSQL. Consumption is a single
// conditional UPDATE so concurrent completions cannot both succeed.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed session store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create persists a new session. The token must be unused.
func (s *PostgresStore) Create(ctx context.Context, session *models.AuthSession) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	query := `
		INSERT INTO auth_sessions (token, application_id, redirect_url, user_email, state, expires_at, consumed, consumed_at, created_at, remote_addr, user_agent, device)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		session.Token,
		session.ApplicationID,
		session.RedirectURL,
		session.UserEmail,
		[]byte(session.State),
		session.ExpiresAt,
		session.Consumed,
		session.ConsumedAt,
		session.CreatedAt,
		session.Meta.RemoteAddr,
		session.Meta.UserAgent,
		session.Meta.Device,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("session token already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByToken retrieves a session without consuming it.
func (s *PostgresStore) FindByToken(ctx context.Context, token string) (*models.AuthSession, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, selectSession+` WHERE token = $1`, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return session, nil
}

// Consume atomically marks the session consumed and returns its payload.
// The WHERE clause is the compare-and-set: the row is only claimed while
// unconsumed and unexpired, and RETURNING hands exactly one caller the
// payload.
func (s *PostgresStore) Consume(ctx context.Context, token string, now time.Time) (*models.AuthSession, error) {
	query := `
		UPDATE auth_sessions
		SET consumed = TRUE, consumed_at = $2
		WHERE token = $1 AND consumed = FALSE AND expires_at > $2
		RETURNING token, application_id, redirect_url, user_email, state, expires_at, consumed, consumed_at, created_at, remote_addr, user_agent, device
	`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, token, now))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("consume session: %w", err)
	}

	// The miss reason only feeds logs and audit; callers receive one
	// indistinguishable error either way.
	existing, findErr := s.FindByToken(ctx, token)
	if findErr != nil {
		if errors.Is(findErr, sentinel.ErrNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("consume session lookup: %w", findErr)
	}
	if existing.Consumed {
		return nil, sentinel.ErrConsumed
	}
	return nil, sentinel.ErrExpired
}

// DeleteExpired removes sessions past expiry and reports how many.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions rows: %w", err)
	}
	return int(rows), nil
}

const selectSession = `
	SELECT token, application_id, redirect_url, user_email, state, expires_at, consumed, consumed_at, created_at, remote_addr, user_agent, device
	FROM auth_sessions`

type sessionRow interface {
	Scan(dest ...any) error
}

func scanSession(row sessionRow) (*models.AuthSession, error) {
	var session models.AuthSession
	var state []byte
	if err := row.Scan(
		&session.Token,
		&session.ApplicationID,
		&session.RedirectURL,
		&session.UserEmail,
		&state,
		&session.ExpiresAt,
		&session.Consumed,
		&session.ConsumedAt,
		&session.CreatedAt,
		&session.Meta.RemoteAddr,
		&session.Meta.UserAgent,
		&session.Meta.Device,
	); err != nil {
		return nil, err
	}
	if len(state) > 0 {
		session.State = state
	}
	return &session, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

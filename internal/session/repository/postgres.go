package repository

import (
	"context"
	"database/sql"
	"time"

	"trustgate/internal/session/domain"
)

// PostgresRepository stores sessions in the sessions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists a new session.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, fingerprint, ip_address, security_level, active, created_at, last_activity, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.Fingerprint, s.IPAddress, string(s.SecurityLevel), s.Active, s.CreatedAt, s.LastActivity, s.ExpiresAt,
	)
	return err
}

// ListActiveByUser returns the user's active, non-expired sessions, oldest first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, fingerprint, ip_address, security_level, active, created_at, last_activity, expires_at
		FROM sessions
		WHERE user_id = $1 AND active AND expires_at > $2
		ORDER BY created_at`,
		userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		var (
			s     domain.Session
			level string
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Fingerprint, &s.IPAddress, &level, &s.Active, &s.CreatedAt, &s.LastActivity, &s.ExpiresAt); err != nil {
			return nil, err
		}
		s.SecurityLevel = domain.Level(level)
		out = append(out, &s)
	}
	return out, rows.Err()
}

// HasFingerprint reports whether the fingerprint was ever recorded for the user.
func (r *PostgresRepository) HasFingerprint(ctx context.Context, userID, fingerprint string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM sessions WHERE user_id = $1 AND fingerprint = $2)`,
		userID, fingerprint,
	).Scan(&exists)
	return exists, err
}

// ListFingerprintsByUserSince returns the distinct fingerprints seen for the
// user with activity at or after since.
func (r *PostgresRepository) ListFingerprintsByUserSince(ctx context.Context, userID string, since time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT fingerprint FROM sessions
		WHERE user_id = $1 AND last_activity >= $2`,
		userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// Touch updates last-activity and security level. Last-writer-wins.
func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time, level domain.Level) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET last_activity = $2, security_level = $3 WHERE id = $1`,
		id, at, string(level),
	)
	return err
}

// Deactivate clears the active flag.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET active = FALSE WHERE id = $1`, id)
	return err
}

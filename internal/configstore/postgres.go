package configstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PostgresStore keeps config entries in the configs table.
type PostgresStore struct {
	db   *sql.DB
	nowF func() time.Time
}

// NewPostgresStore returns a Store backed by the given db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, nowF: func() time.Time { return time.Now().UTC() }}
}

// Get returns the raw value for key, or nil when absent, inactive, or expired.
func (s *PostgresStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM configs
		WHERE key = $1 AND active AND (expires_at IS NULL OR expires_at > $2)`,
		key, s.nowF(),
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return raw, nil
}

// Set creates or replaces the value for key and reactivates it.
func (s *PostgresStore) Set(ctx context.Context, key string, value json.RawMessage, expiresAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO configs (key, value, expires_at, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, active = TRUE`,
		key, []byte(value), expiresAt,
	)
	return err
}

// Deactivate hides the key without deleting it.
func (s *PostgresStore) Deactivate(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE configs SET active = FALSE WHERE key = $1`, key)
	return err
}

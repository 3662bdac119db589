package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trustgate/internal/ratelimit/domain"
)

// PostgresRepository stores rate limit configuration in the rate_configs table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a config repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByEndpoint returns the configuration for the endpoint, or nil if unconfigured.
func (r *PostgresRepository) GetByEndpoint(ctx context.Context, endpoint string) (*domain.Config, error) {
	var cfg domain.Config
	err := r.db.QueryRowContext(ctx, `
		SELECT endpoint, max_requests, window_seconds, block_duration_seconds, updated_at
		FROM rate_configs WHERE endpoint = $1`,
		endpoint,
	).Scan(&cfg.Endpoint, &cfg.MaxRequests, &cfg.WindowSeconds, &cfg.BlockDurationSeconds, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// Upsert creates or replaces the configuration for cfg.Endpoint.
func (r *PostgresRepository) Upsert(ctx context.Context, cfg *domain.Config) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rate_configs (endpoint, max_requests, window_seconds, block_duration_seconds, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (endpoint) DO UPDATE
		SET max_requests = EXCLUDED.max_requests,
		    window_seconds = EXCLUDED.window_seconds,
		    block_duration_seconds = EXCLUDED.block_duration_seconds,
		    updated_at = EXCLUDED.updated_at`,
		cfg.Endpoint, cfg.MaxRequests, cfg.WindowSeconds, cfg.BlockDurationSeconds, time.Now().UTC(),
	)
	return err
}

// List returns all configured endpoints ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Config, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT endpoint, max_requests, window_seconds, block_duration_seconds, updated_at
		FROM rate_configs ORDER BY endpoint`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Config
	for rows.Next() {
		var cfg domain.Config
		if err := rows.Scan(&cfg.Endpoint, &cfg.MaxRequests, &cfg.WindowSeconds, &cfg.BlockDurationSeconds, &cfg.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &cfg)
	}
	return out, rows.Err()
}

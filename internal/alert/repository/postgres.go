package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"trustgate/internal/alert/domain"
)

// PostgresRepository stores alerts in the alerts table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an alert repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create appends one alert.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Alert) error {
	var details []byte
	if a.Details != nil {
		var err error
		details, err = json.Marshal(a.Details)
		if err != nil {
			return err
		}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (id, severity, category, reason_code, actor_id, ip_address, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, string(a.Severity), a.Category, a.ReasonCode, a.ActorID, a.IPAddress, details, a.CreatedAt,
	)
	return err
}

// ListSince returns alerts created at or after since, newest first.
func (r *PostgresRepository) ListSince(ctx context.Context, since time.Time) ([]*domain.Alert, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, severity, category, reason_code, actor_id, ip_address, details, created_at
		FROM alerts WHERE created_at >= $1 ORDER BY created_at DESC`,
		since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Alert
	for rows.Next() {
		var (
			a        domain.Alert
			severity string
			details  []byte
		)
		if err := rows.Scan(&a.ID, &severity, &a.Category, &a.ReasonCode, &a.ActorID, &a.IPAddress, &details, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Severity = domain.Severity(severity)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &a.Details); err != nil {
				return nil, err
			}
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

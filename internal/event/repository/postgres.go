package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"trustgate/internal/event/domain"
)

// PostgresRepository persists events in the events table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an event repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert appends one event. The event must have ID and CreatedAt set.
func (r *PostgresRepository) Insert(ctx context.Context, e *domain.Event) error {
	payload, err := domain.EncodePayload(e.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO events (id, event_type, severity, source, actor_id, session_id, ip_address, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Type, string(e.Severity), e.Source, e.ActorID, e.SessionID, e.IPAddress, nullBytes(payload), e.CreatedAt,
	)
	return err
}

// ListByActorSince returns events for the actor with created_at >= since, oldest first.
func (r *PostgresRepository) ListByActorSince(ctx context.Context, actorID string, since time.Time) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, severity, source, actor_id, session_id, ip_address, payload, created_at
		FROM events
		WHERE actor_id = $1 AND created_at >= $2
		ORDER BY created_at ASC`,
		actorID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var (
			e       domain.Event
			sev     string
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.Type, &sev, &e.Source, &e.ActorID, &e.SessionID, &e.IPAddress, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Severity = domain.Severity(sev)
		p, err := domain.DecodePayload(e.Type, payload)
		if err != nil {
			return nil, err
		}
		e.Payload = p
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CountBySeveritySince returns the number of events for the actor at the given severity since the cutoff.
func (r *PostgresRepository) CountBySeveritySince(ctx context.Context, actorID string, severity domain.Severity, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE actor_id = $1 AND severity = $2 AND created_at >= $3`,
		actorID, string(severity), since,
	).Scan(&n)
	return n, err
}

// CountAttemptsSince counts rate-limit attempt events for the (endpoint, identifier) pair.
// Attempts are stored with source = endpoint and actor_id = identifier.
func (r *PostgresRepository) CountAttemptsSince(ctx context.Context, endpoint, identifier string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE event_type = $1 AND source = $2 AND actor_id = $3 AND created_at >= $4`,
		domain.TypeRateLimitAttempt, endpoint, identifier, since,
	).Scan(&n)
	return n, err
}

// DeleteByTypesOlderThan removes events of the given types older than cutoff.
func (r *PostgresRepository) DeleteByTypesOlderThan(ctx context.Context, types []string, cutoff time.Time) (int64, error) {
	if len(types) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(types)+1)
	args = append(args, cutoff)
	placeholders := make([]string, len(types))
	for i, t := range types {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, t)
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM events WHERE created_at < $1 AND event_type IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteBySeveritiesOlderThan removes events at the given severities older than cutoff.
func (r *PostgresRepository) DeleteBySeveritiesOlderThan(ctx context.Context, severities []domain.Severity, cutoff time.Time) (int64, error) {
	if len(severities) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(severities)+1)
	args = append(args, cutoff)
	placeholders := make([]string, len(severities))
	for i, s := range severities {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, string(s))
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM events WHERE created_at < $1 AND severity IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

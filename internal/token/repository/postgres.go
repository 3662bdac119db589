package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trustgate/internal/token/domain"
)

// usedRetention is how long used token rows are kept before the sweep deletes them.
const usedRetention = 24 * time.Hour

// PostgresRepository persists tokens in the security_tokens table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a token repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the token. The token must have TokenHash set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Token) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO security_tokens (token_hash, session_hash, user_agent_hash, issued_ip, security_level, created_at, expires_at, used_at, used_ip, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, '', TRUE)`,
		t.TokenHash, t.SessionHash, t.UserAgentHash, t.IssuedIP, string(t.SecurityLevel), t.CreatedAt, t.ExpiresAt,
	)
	return err
}

// GetByHash returns the token for the hash, or nil if not found.
func (r *PostgresRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.Token, error) {
	var (
		t      domain.Token
		level  string
		usedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT token_hash, session_hash, user_agent_hash, issued_ip, security_level, created_at, expires_at, used_at, used_ip, active
		FROM security_tokens WHERE token_hash = $1`,
		tokenHash,
	).Scan(&t.TokenHash, &t.SessionHash, &t.UserAgentHash, &t.IssuedIP, &level, &t.CreatedAt, &t.ExpiresAt, &usedAt, &t.UsedIP, &t.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.SecurityLevel = domain.SecurityLevel(level)
	if usedAt.Valid {
		t.UsedAt = &usedAt.Time
	}
	return &t, nil
}

// MarkUsed flips active -> used in a single guarded UPDATE so concurrent
// validators cannot both win.
func (r *PostgresRepository) MarkUsed(ctx context.Context, tokenHash string, at time.Time, ip string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE security_tokens
		SET used_at = $2, used_ip = $3, active = FALSE
		WHERE token_hash = $1 AND used_at IS NULL AND active`,
		tokenHash, at, ip,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Deactivate clears the active flag without marking use.
func (r *PostgresRepository) Deactivate(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE security_tokens SET active = FALSE WHERE token_hash = $1`, tokenHash)
	return err
}

// Sweep deactivates expired tokens and deletes used rows past retention.
func (r *PostgresRepository) Sweep(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE security_tokens SET active = FALSE WHERE active AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	expired, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	res, err = r.db.ExecContext(ctx,
		`DELETE FROM security_tokens WHERE used_at IS NOT NULL AND used_at < $1`, now.Add(-usedRetention))
	if err != nil {
		return expired, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return expired, err
	}
	return expired + deleted, nil
}

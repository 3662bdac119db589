// Package repository defines the sessions store contract.
package repository

import (
	"context"
	"time"

	"trustgate/internal/session/domain"
)

// Repository reads and mutates session rows.
type Repository interface {
	// Create persists a new session.
	Create(ctx context.Context, s *domain.Session) error
	// ListActiveByUser returns the user's active, non-expired sessions.
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)
	// HasFingerprint reports whether the fingerprint has ever been recorded
	// for the user, active or not.
	HasFingerprint(ctx context.Context, userID, fingerprint string) (bool, error)
	// ListFingerprintsByUserSince returns the distinct fingerprints seen for
	// the user with activity at or after since.
	ListFingerprintsByUserSince(ctx context.Context, userID string, since time.Time) ([]string, error)
	// Touch updates last-activity and security level. Last-writer-wins.
	Touch(ctx context.Context, id string, at time.Time, level domain.Level) error
	// Deactivate clears the active flag.
	Deactivate(ctx context.Context, id string) error
}

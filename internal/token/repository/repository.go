// Package repository defines the token store contract.
package repository

import (
	"context"
	"time"

	"trustgate/internal/token/domain"
)

// Repository stores anti-forgery tokens keyed by token hash.
type Repository interface {
	// Create persists a newly issued token.
	Create(ctx context.Context, t *domain.Token) error
	// GetByHash returns the token for the hash, or nil if not found.
	// It returns an error only for store failures, not for missing rows.
	GetByHash(ctx context.Context, tokenHash string) (*domain.Token, error)
	// MarkUsed atomically flips the token from active to used, stamping use
	// time and IP. Returns true iff this call performed the flip; false when
	// the token was already used, inactive, or absent. This is the
	// single-winner guarantee under concurrent validation.
	MarkUsed(ctx context.Context, tokenHash string, at time.Time, ip string) (bool, error)
	// Deactivate clears the active flag without marking use (expiry sweep).
	Deactivate(ctx context.Context, tokenHash string) error
	// Sweep deactivates expired tokens and deletes used rows older than a day.
	// Returns the number of rows touched. Idempotent.
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

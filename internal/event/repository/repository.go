// Package repository defines the event store read/write contract.
package repository

import (
	"context"
	"time"

	"trustgate/internal/event/domain"
)

// Repository is the append-only event store plus the queries the gateway
// components run against it.
type Repository interface {
	// Insert appends one event. Events are immutable once written.
	Insert(ctx context.Context, e *domain.Event) error
	// ListByActorSince returns events for the actor with created_at >= since,
	// oldest first.
	ListByActorSince(ctx context.Context, actorID string, since time.Time) ([]*domain.Event, error)
	// CountBySeveritySince returns the number of events for the actor at the
	// given severity with created_at >= since.
	CountBySeveritySince(ctx context.Context, actorID string, severity domain.Severity, since time.Time) (int, error)
	// CountAttemptsSince counts rate-limit attempt events for the
	// (endpoint, identifier) pair with created_at >= since.
	CountAttemptsSince(ctx context.Context, endpoint, identifier string, since time.Time) (int, error)
	// DeleteByTypesOlderThan removes events of the given types older than
	// cutoff and returns the number removed. Idempotent.
	DeleteByTypesOlderThan(ctx context.Context, types []string, cutoff time.Time) (int64, error)
	// DeleteBySeveritiesOlderThan removes events at the given severities older
	// than cutoff and returns the number removed. Idempotent.
	DeleteBySeveritiesOlderThan(ctx context.Context, severities []domain.Severity, cutoff time.Time) (int64, error)
}

// Package repository persists alert records.
package repository

import (
	"context"
	"time"

	"trustgate/internal/alert/domain"
)

// Repository stores alerts raised by the gateway.
type Repository interface {
	// Create appends one alert.
	Create(ctx context.Context, a *domain.Alert) error
	// ListSince returns alerts created at or after since, newest first.
	ListSince(ctx context.Context, since time.Time) ([]*domain.Alert, error)
}

// Package repository persists per-endpoint rate limit configuration.
package repository

import (
	"context"

	"trustgate/internal/ratelimit/domain"
)

// ConfigRepository reads and writes rate limit configuration.
type ConfigRepository interface {
	// GetByEndpoint returns the configuration for the endpoint, or nil if the
	// endpoint is unconfigured.
	GetByEndpoint(ctx context.Context, endpoint string) (*domain.Config, error)
	// Upsert creates or replaces the configuration for cfg.Endpoint.
	Upsert(ctx context.Context, cfg *domain.Config) error
	// List returns all configured endpoints.
	List(ctx context.Context) ([]*domain.Config, error)
}

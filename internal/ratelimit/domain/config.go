// Package domain defines per-endpoint rate limit configuration.
package domain

import "time"

// Defaults applied when an endpoint has no stored configuration.
const (
	DefaultMaxRequests          = 100
	DefaultWindowSeconds        = 3600
	DefaultBlockDurationSeconds = 3600
)

// Config is the administrator-managed limit for one endpoint. Read-only to the
// gateway at request time.
type Config struct {
	Endpoint             string
	MaxRequests          int
	WindowSeconds        int
	BlockDurationSeconds int
	UpdatedAt            time.Time
}

// Default returns the fallback configuration used for unconfigured endpoints.
func Default(endpoint string) *Config {
	return &Config{
		Endpoint:             endpoint,
		MaxRequests:          DefaultMaxRequests,
		WindowSeconds:        DefaultWindowSeconds,
		BlockDurationSeconds: DefaultBlockDurationSeconds,
	}
}

// Window returns the sliding window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// BlockDuration returns the block period as a duration.
func (c *Config) BlockDuration() time.Duration {
	return time.Duration(c.BlockDurationSeconds) * time.Second
}

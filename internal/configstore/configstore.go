// Package configstore reads and writes the keyed runtime configuration table
// shared with the rest of the platform. Entries can expire or be deactivated
// without being deleted.
package configstore

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the keyed config contract.
type Store interface {
	// Get returns the raw JSON value for key, or nil when the key is absent,
	// inactive, or expired.
	Get(ctx context.Context, key string) (json.RawMessage, error)
	// Set creates or replaces the value for key. A nil expiresAt never expires.
	Set(ctx context.Context, key string, value json.RawMessage, expiresAt *time.Time) error
	// Deactivate hides the key without deleting it.
	Deactivate(ctx context.Context, key string) error
}

// GetString reads a JSON string value for key. Missing keys return "".
func GetString(ctx context.Context, s Store, key string) (string, error) {
	raw, err := s.Get(ctx, key)
	if err != nil || raw == nil {
		return "", err
	}
	var out string
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	return out, nil
}

// Package domain defines the anti-forgery token record.
package domain

import "time"

// SecurityLevel marks how the token was issued.
type SecurityLevel string

const (
	LevelStandard SecurityLevel = "standard"
	LevelEnhanced SecurityLevel = "enhanced"
)

// Token is one stored anti-forgery token. Only hashes are persisted; the raw
// value exists client-side until first validation. A token transitions
// active -> used exactly once, atomically with validation.
type Token struct {
	TokenHash     string
	SessionHash   string
	UserAgentHash string
	IssuedIP      string
	SecurityLevel SecurityLevel
	CreatedAt     time.Time
	ExpiresAt     time.Time
	UsedAt        *time.Time // nil while active
	UsedIP        string
	Active        bool
}

// Expired reports whether the token is past its expiry at the given instant.
// A token expires exactly at ExpiresAt: validation at ExpiresAt-ε succeeds,
// at ExpiresAt it fails.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

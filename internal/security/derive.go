package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"time"

	"golang.org/x/crypto/sha3"
)

// seedSize is the random seed length mixed into every derived token.
const seedSize = 64

// NewSeed returns a cryptographically secure random seed for token derivation.
func NewSeed() ([]byte, error) {
	b := make([]byte, seedSize)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// DeriveToken derives a one-time token value: SHA3-512 over the random seed,
// the issue timestamp (unix ms), the session identifier, caller-supplied
// entropy, and the user agent, hex encoded. The seed dominates the input, so
// the output is unpredictable even for identical sessions and timestamps.
func DeriveToken(seed []byte, issuedAt time.Time, sessionID, entropy, userAgent string) string {
	h := sha3.New512()
	h.Write(seed)
	h.Write([]byte(strconv.FormatInt(issuedAt.UnixMilli(), 10)))
	h.Write([]byte(sessionID))
	h.Write([]byte(entropy))
	h.Write([]byte(userAgent))
	return hex.EncodeToString(h.Sum(nil))
}

// HashIdentifier returns a SHA-256 hex digest of s. Used to persist token,
// session, and user-agent references without storing raw values.
func HashIdentifier(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashEqual compares a candidate value's hash with a stored hash in constant
// time.
func HashEqual(candidate, storedHash string) bool {
	h := HashIdentifier(candidate)
	return subtle.ConstantTimeCompare([]byte(h), []byte(storedHash)) == 1
}

// Package rotator keeps a fresh anti-forgery token on behalf of a long-lived
// client, re-issuing on a fixed interval and reactively on expiry.
package rotator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"

	tokenservice "trustgate/internal/token/service"
)

// defaultInterval matches the shortened rotation TTL: a fresh token is minted
// before the previous one can expire.
const defaultInterval = 30 * time.Minute

// Issuer mints tokens; implemented by the token service.
type Issuer interface {
	Issue(ctx context.Context, p tokenservice.IssueParams) (*tokenservice.IssueResult, error)
}

// Current is the token the rotator is holding for the client.
type Current struct {
	Token     string
	ExpiresAt time.Time
	// Fallback marks a client-only pseudo-token minted after an issue
	// failure. It never validates server-side; use only for non-critical
	// paths.
	Fallback bool
}

// Rotator periodically refreshes a session's token. Run blocks until the
// context is cancelled; no timers leak after cancellation.
type Rotator struct {
	issuer    Issuer
	sessionID string
	userAgent string
	interval  time.Duration
	logger    *zap.Logger

	mu      sync.RWMutex
	current Current
	nowF    func() time.Time
}

// New returns a Rotator for the session. interval <= 0 uses the default.
func New(issuer Issuer, sessionID, userAgent string, interval time.Duration, logger *zap.Logger) *Rotator {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rotator{
		issuer:    issuer,
		sessionID: sessionID,
		userAgent: userAgent,
		interval:  interval,
		logger:    logger,
		nowF:      func() time.Time { return time.Now().UTC() },
	}
}

// Run rotates immediately, then on every interval tick, until ctx is
// cancelled.
func (r *Rotator) Run(ctx context.Context) {
	r.rotate(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.rotate(ctx)
		}
	}
}

// Token returns the current token, reactively rotating first when the held
// token has expired.
func (r *Rotator) Token(ctx context.Context) Current {
	r.mu.RLock()
	cur := r.current
	r.mu.RUnlock()
	if cur.Token != "" && r.nowF().Before(cur.ExpiresAt) {
		return cur
	}
	r.rotate(ctx)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *Rotator) rotate(ctx context.Context) {
	res, err := r.issuer.Issue(ctx, tokenservice.IssueParams{
		SessionID: r.sessionID,
		Timestamp: r.nowF(),
		UserAgent: r.userAgent,
		Rotation:  true,
	})
	if err != nil {
		// Degrade to a client-only pseudo-token: clearly inferior, never
		// accepted by the server, good enough for non-critical use.
		r.logger.Warn("token rotation failed; using client-only fallback",
			zap.String("session", r.sessionID), zap.Error(err))
		r.mu.Lock()
		r.current = Current{
			Token:     "fallback-" + randomSuffix(),
			ExpiresAt: r.nowF().Add(r.interval),
			Fallback:  true,
		}
		r.mu.Unlock()
		return
	}
	r.mu.Lock()
	r.current = Current{Token: res.Token, ExpiresAt: res.ExpiresAt}
	r.mu.Unlock()
}

func randomSuffix() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "00000000000000000000000000000000"
	}
	return hex.EncodeToString(b)
}

// Package revalidator re-checks a session's trust on a fixed interval on
// behalf of a long-lived client, surfacing escalations as they happen instead
// of at the next user action.
package revalidator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"trustgate/internal/session/domain"
)

const defaultInterval = 5 * time.Minute

// Validator produces trust verdicts; implemented by the session service.
type Validator interface {
	Validate(ctx context.Context, userID, fingerprint, ip string) *domain.Verdict
}

// Revalidator periodically validates one session. Run blocks until the
// context is cancelled; no timers leak after cancellation.
type Revalidator struct {
	validator   Validator
	userID      string
	fingerprint string
	ip          string
	interval    time.Duration
	onChange    func(*domain.Verdict) // may be nil
	logger      *zap.Logger

	mu   sync.RWMutex
	last *domain.Verdict
}

// New returns a Revalidator for the session. interval <= 0 uses the default.
// onChange fires whenever the verdict's validity or security level differs
// from the previous one.
func New(validator Validator, userID, fingerprint, ip string, interval time.Duration, onChange func(*domain.Verdict), logger *zap.Logger) *Revalidator {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Revalidator{
		validator:   validator,
		userID:      userID,
		fingerprint: fingerprint,
		ip:          ip,
		interval:    interval,
		onChange:    onChange,
		logger:      logger,
	}
}

// Run validates immediately, then on every interval tick, until ctx is
// cancelled.
func (r *Revalidator) Run(ctx context.Context) {
	r.check(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.check(ctx)
		}
	}
}

// Last returns the most recent verdict, or nil before the first check.
func (r *Revalidator) Last() *domain.Verdict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

func (r *Revalidator) check(ctx context.Context) {
	v := r.validator.Validate(ctx, r.userID, r.fingerprint, r.ip)

	r.mu.Lock()
	prev := r.last
	r.last = v
	r.mu.Unlock()

	changed := prev == nil || prev.Valid != v.Valid || prev.SecurityLevel != v.SecurityLevel
	if !changed {
		return
	}
	if !v.Valid {
		r.logger.Warn("session trust revoked",
			zap.String("user", r.userID),
			zap.String("reason", v.Reason))
	}
	if r.onChange != nil {
		r.onChange(v)
	}
}

package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	eventdomain "trustgate/internal/event/domain"
	"trustgate/internal/ratelimit/domain"
	"trustgate/internal/ratelimit/repository"
)

// Policy selects what a call site gets when the config or count lookup itself
// fails. Availability-first endpoints fail open; security-critical paths fail
// closed.
type Policy int

const (
	FailOpen Policy = iota
	FailClosed
)

// Decision is the admit/block outcome for one check.
type Decision struct {
	Allowed       bool
	Attempts      int // including this one
	MaxAttempts   int
	ResetTime     time.Time
	BlockDuration time.Duration // zero unless blocked
	Degraded      bool          // infrastructure failure, policy default applied
}

// EventSink records security events without affecting the decision.
type EventSink interface {
	RecordBestEffort(ctx context.Context, e *eventdomain.Event)
}

// Limiter applies per-endpoint sliding window limits.
type Limiter struct {
	configs repository.ConfigRepository
	counter Counter
	events  EventSink
	logger  *zap.Logger
	nowF    func() time.Time
}

// New returns a Limiter. events may be nil.
func New(configs repository.ConfigRepository, counter Counter, events EventSink, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		configs: configs,
		counter: counter,
		events:  events,
		logger:  logger,
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// CheckAndRecord counts prior attempts for (endpoint, identifier) inside the
// endpoint's window, records this attempt unconditionally, and decides
// admit or block. identifier falls back to ip when empty. On infrastructure
// failure the policy's default is returned instead of an error.
func (l *Limiter) CheckAndRecord(ctx context.Context, endpoint, identifier, ip string, policy Policy) *Decision {
	if identifier == "" {
		identifier = ip
	}
	now := l.nowF()

	cfg, err := l.configs.GetByEndpoint(ctx, endpoint)
	if err != nil {
		l.logger.Warn("rate config lookup failed", zap.String("endpoint", endpoint), zap.Error(err))
		return l.degraded(ctx, endpoint, identifier, ip, policy, now)
	}
	if cfg == nil {
		cfg = domain.Default(endpoint)
	}

	prior, err := l.counter.Observe(ctx, endpoint, identifier, now, cfg.Window())
	if err != nil {
		l.logger.Warn("attempt count failed", zap.String("endpoint", endpoint), zap.Error(err))
		return l.degraded(ctx, endpoint, identifier, ip, policy, now)
	}

	d := &Decision{
		Allowed:     prior < cfg.MaxRequests,
		Attempts:    prior + 1,
		MaxAttempts: cfg.MaxRequests,
		ResetTime:   now.Add(cfg.Window()),
	}
	if !d.Allowed {
		d.BlockDuration = cfg.BlockDuration()
	}
	l.record(ctx, endpoint, identifier, ip, d)
	return d
}

// degraded applies the call site's failure policy and still records the
// attempt so the abuse trail survives the outage.
func (l *Limiter) degraded(ctx context.Context, endpoint, identifier, ip string, policy Policy, now time.Time) *Decision {
	cfg := domain.Default(endpoint)
	d := &Decision{
		Allowed:     policy == FailOpen,
		Attempts:    1,
		MaxAttempts: cfg.MaxRequests,
		ResetTime:   now.Add(cfg.Window()),
		Degraded:    true,
	}
	if !d.Allowed {
		d.BlockDuration = cfg.BlockDuration()
	}
	l.record(ctx, endpoint, identifier, ip, d)
	return d
}

func (l *Limiter) record(ctx context.Context, endpoint, identifier, ip string, d *Decision) {
	if l.events == nil {
		return
	}
	payload := eventdomain.RateLimitAttempt{
		Endpoint:   endpoint,
		Identifier: identifier,
		Attempts:   d.Attempts,
		Blocked:    !d.Allowed,
	}
	l.events.RecordBestEffort(ctx, &eventdomain.Event{
		Type:      eventdomain.TypeRateLimitAttempt,
		Severity:  eventdomain.SeverityInfo,
		Source:    endpoint,
		ActorID:   identifier,
		IPAddress: ip,
		Payload:   payload,
	})
	if !d.Allowed {
		l.events.RecordBestEffort(ctx, &eventdomain.Event{
			Type:      eventdomain.TypeRateLimitExceeded,
			Severity:  eventdomain.SeverityHigh,
			Source:    endpoint,
			ActorID:   identifier,
			IPAddress: ip,
			Payload:   payload,
		})
	}
}

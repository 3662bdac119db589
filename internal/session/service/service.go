// Package service decides whether an authenticated actor's request is
// consistent with a known, non-anomalous session.
package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	alertdomain "trustgate/internal/alert/domain"
	eventdomain "trustgate/internal/event/domain"
	"trustgate/internal/session/domain"
	"trustgate/internal/session/repository"
)

// Heuristic thresholds. Named so they can be tuned without touching the rule
// logic.
const (
	maxSessionAge     = 24 * time.Hour
	eventWindow       = time.Hour
	highEventLimit    = 3 // more than this escalates to enhanced
	distinctIPLimit   = 2 // more than this escalates to enhanced
	burstRunLength    = 5 // events this close together suggest automation
	burstMaxGap       = time.Second
	defaultSessionTTL = 12 * time.Hour
)

// EventHistory is the slice of the event store the validator inspects.
type EventHistory interface {
	ListByActorSince(ctx context.Context, actorID string, since time.Time) ([]*eventdomain.Event, error)
}

// EventSink records security events without affecting the verdict.
type EventSink interface {
	RecordBestEffort(ctx context.Context, e *eventdomain.Event)
}

// Alerter raises an alert record for critical denials. Best-effort.
type Alerter interface {
	Raise(ctx context.Context, a *alertdomain.Alert)
}

// Service validates session trust with an ordered rule chain.
type Service struct {
	repo    repository.Repository
	history EventHistory
	events  EventSink
	alerts  Alerter
	logger  *zap.Logger
	nowF    func() time.Time
}

// New returns a session trust validator. events and alerts may be nil.
func New(repo repository.Repository, history EventHistory, events EventSink, alerts Alerter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		history: history,
		events:  events,
		alerts:  alerts,
		logger:  logger,
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// Start creates a new session at login.
func (s *Service) Start(ctx context.Context, userID, fingerprint, ip string) (*domain.Session, error) {
	now := s.nowF()
	sess := &domain.Session{
		ID:            uuid.New().String(),
		UserID:        userID,
		Fingerprint:   fingerprint,
		IPAddress:     ip,
		SecurityLevel: domain.LevelStandard,
		Active:        true,
		CreatedAt:     now,
		LastActivity:  now,
		ExpiresAt:     now.Add(defaultSessionTTL),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate runs the ordered rule chain for (userID, fingerprint). The first
// failing rule fixes the reason; security level and required actions keep
// accumulating across later rules. Store failures degrade to an invalid,
// critical verdict instead of an error.
func (s *Service) Validate(ctx context.Context, userID, fingerprint, ip string) *domain.Verdict {
	now := s.nowF()
	v := s.evaluate(ctx, userID, fingerprint, now)
	s.record(ctx, userID, fingerprint, ip, v)
	return v
}

func (s *Service) evaluate(ctx context.Context, userID, fingerprint string, now time.Time) *domain.Verdict {
	v := &domain.Verdict{Valid: true, SecurityLevel: domain.LevelStandard}

	sessions, err := s.repo.ListActiveByUser(ctx, userID, now)
	if err != nil {
		s.logger.Warn("session lookup failed", zap.String("user", userID), zap.Error(err))
		return s.unavailable()
	}
	if len(sessions) == 0 {
		v.Valid = false
		v.Reason = domain.ReasonNoActiveSession
		v.SecurityLevel = domain.LevelCritical
		return v
	}

	var match *domain.Session
	for _, sess := range sessions {
		if sess.Fingerprint == fingerprint {
			match = sess
			break
		}
	}
	if match == nil {
		seen, err := s.repo.HasFingerprint(ctx, userID, fingerprint)
		if err != nil {
			s.logger.Warn("fingerprint lookup failed", zap.String("user", userID), zap.Error(err))
			return s.unavailable()
		}
		if !seen {
			v.Valid = false
			v.Reason = domain.ReasonUnknownDevice
			v.SecurityLevel = domain.LevelCritical
			v.RequiredActions = append(v.RequiredActions, "Device verification required")
			return v
		}
		v.Valid = false
		v.Reason = domain.ReasonSessionExpiredForDevice
		v.SecurityLevel = domain.LevelEnhanced
		v.RequiredActions = append(v.RequiredActions, "Re-authentication required")
		return v
	}

	if now.Sub(match.CreatedAt) > maxSessionAge {
		v.Valid = false
		v.Reason = domain.ReasonSessionTooOld
		v.SecurityLevel = v.SecurityLevel.Escalate(domain.LevelEnhanced)
		v.RequiredActions = append(v.RequiredActions, "Session refresh required")
		return v
	}

	events, err := s.history.ListByActorSince(ctx, userID, now.Add(-eventWindow))
	if err != nil {
		s.logger.Warn("event history lookup failed", zap.String("user", userID), zap.Error(err))
		return s.unavailable()
	}

	for _, e := range events {
		if e.Severity == eventdomain.SeverityCritical {
			v.Valid = false
			v.Reason = domain.ReasonCriticalEventsDetected
			v.SecurityLevel = domain.LevelCritical
			v.RequiredActions = append(v.RequiredActions, "Immediate security review required")
			return v
		}
	}

	high := 0
	ips := make(map[string]struct{})
	for _, e := range events {
		if e.Severity == eventdomain.SeverityHigh {
			high++
		}
		if e.IPAddress != "" {
			ips[e.IPAddress] = struct{}{}
		}
	}
	if high > highEventLimit {
		v.SecurityLevel = v.SecurityLevel.Escalate(domain.LevelEnhanced)
		v.RequiredActions = append(v.RequiredActions, "Enhanced monitoring active")
	}
	if len(ips) > distinctIPLimit {
		v.SecurityLevel = v.SecurityLevel.Escalate(domain.LevelEnhanced)
		v.RequiredActions = append(v.RequiredActions, "Multiple IP addresses detected")
	}

	if burstDetected(events) {
		v.Valid = false
		v.Reason = domain.ReasonAutomatedAttackSuspected
		v.SecurityLevel = domain.LevelCritical
		v.RequiredActions = append(v.RequiredActions, "Account lockdown initiated")
		return v
	}

	if err := s.repo.Touch(ctx, match.ID, now, v.SecurityLevel); err != nil {
		s.logger.Warn("session touch failed", zap.String("session", match.ID), zap.Error(err))
	}
	return v
}

// burstDetected reports whether the sorted event timestamps contain a run of
// burstRunLength or more events each less than burstMaxGap apart.
func burstDetected(events []*eventdomain.Event) bool {
	if len(events) < burstRunLength {
		return false
	}
	times := make([]time.Time, len(events))
	for i, e := range events {
		times[i] = e.CreatedAt
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	run := 1
	for i := 1; i < len(times); i++ {
		if times[i].Sub(times[i-1]) < burstMaxGap {
			run++
			if run >= burstRunLength {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func (s *Service) unavailable() *domain.Verdict {
	return &domain.Verdict{
		Valid:         false,
		Reason:        domain.ReasonStoreUnavailable,
		SecurityLevel: domain.LevelCritical,
	}
}

// record writes the verdict to the event store and raises an alert for
// critical denials. Denials are logged at high severity rather than critical
// so a failed validation does not trip the critical-events rule on the
// actor's next request.
func (s *Service) record(ctx context.Context, userID, fingerprint, ip string, v *domain.Verdict) {
	if s.events != nil {
		severity := eventdomain.SeverityInfo
		if !v.Valid {
			if v.SecurityLevel == domain.LevelCritical {
				severity = eventdomain.SeverityHigh
			} else {
				severity = eventdomain.SeverityMedium
			}
		}
		s.events.RecordBestEffort(ctx, &eventdomain.Event{
			Type:      eventdomain.TypeSessionValidation,
			Severity:  severity,
			Source:    "session-validator",
			ActorID:   userID,
			IPAddress: ip,
			Payload: eventdomain.SessionValidationPayload{
				Valid:           v.Valid,
				Reason:          v.Reason,
				SecurityLevel:   string(v.SecurityLevel),
				RequiredActions: v.RequiredActions,
				Fingerprint:     fingerprint,
			},
		})
	}
	if s.alerts != nil && !v.Valid && v.SecurityLevel == domain.LevelCritical {
		s.alerts.Raise(ctx, &alertdomain.Alert{
			Severity:   alertdomain.SeverityCritical,
			Category:   "session",
			ReasonCode: v.Reason,
			ActorID:    userID,
			IPAddress:  ip,
			Details:    map[string]any{"fingerprint": fingerprint},
		})
	}
}

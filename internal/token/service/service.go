// Package service implements issuing and single-use validation of
// anti-forgery tokens.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	eventdomain "trustgate/internal/event/domain"
	"trustgate/internal/security"
	"trustgate/internal/token/domain"
	tokenrepo "trustgate/internal/token/repository"
)

// replayWindow is the maximum clock skew accepted between the caller's
// declared timestamp and server time when issuing.
const replayWindow = 5 * time.Minute

// Sentinel errors for the token service; the handler maps them to the wire
// reason codes.
var (
	ErrReplayWindow     = errors.New("request timestamp outside replay window")
	ErrTokenNotFound    = errors.New("token not found or already used")
	ErrTokenExpired     = errors.New("token expired")
	ErrSessionMismatch  = errors.New("token bound to a different session")
	ErrStoreUnavailable = errors.New("token store unavailable")
)

// EventSink records security events best-effort.
type EventSink interface {
	RecordBestEffort(ctx context.Context, e *eventdomain.Event)
}

// IssueParams are the caller-supplied inputs for IssueToken.
type IssueParams struct {
	SessionID string
	Timestamp time.Time
	UserAgent string
	Entropy   string
	Rotation  bool // shortened TTL for explicit rotation
	Enhanced  bool
	IP        string
}

// IssueResult carries the raw token back to the caller. Only hashes are stored.
type IssueResult struct {
	Token         string
	ExpiresAt     time.Time
	SecurityLevel domain.SecurityLevel
}

// Service issues and validates one-time anti-forgery tokens.
type Service struct {
	repo        tokenrepo.Repository
	events      EventSink
	ttl         time.Duration
	rotationTTL time.Duration
	nowF        func() time.Time
}

// NewService returns a token Service. ttl defaults to 1h and rotationTTL to
// 30m when non-positive.
func NewService(repo tokenrepo.Repository, events EventSink, ttl, rotationTTL time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if rotationTTL <= 0 {
		rotationTTL = 30 * time.Minute
	}
	return &Service{
		repo:        repo,
		events:      events,
		ttl:         ttl,
		rotationTTL: rotationTTL,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// Issue derives and persists a new token bound to the session. The caller's
// timestamp must be within the replay window of server time.
func (s *Service) Issue(ctx context.Context, p IssueParams) (*IssueResult, error) {
	now := s.nowF()
	skew := now.Sub(p.Timestamp)
	if skew < 0 {
		skew = -skew
	}
	if skew > replayWindow {
		s.record(ctx, eventdomain.TypeTokenRejected, eventdomain.SeverityHigh, p.SessionID, p.IP, &eventdomain.TokenLifecycle{
			SessionHash: security.HashIdentifier(p.SessionID),
			Reason:      "ReplayWindowViolation",
		})
		return nil, ErrReplayWindow
	}

	seed, err := security.NewSeed()
	if err != nil {
		return nil, fmt.Errorf("token seed: %w", err)
	}
	value := security.DeriveToken(seed, now, p.SessionID, p.Entropy, p.UserAgent)

	ttl := s.ttl
	if p.Rotation {
		ttl = s.rotationTTL
	}
	level := domain.LevelStandard
	if p.Enhanced {
		level = domain.LevelEnhanced
	}
	rec := &domain.Token{
		TokenHash:     security.HashIdentifier(value),
		SessionHash:   security.HashIdentifier(p.SessionID),
		UserAgentHash: security.HashIdentifier(p.UserAgent),
		IssuedIP:      p.IP,
		SecurityLevel: level,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		Active:        true,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.record(ctx, eventdomain.TypeTokenIssued, eventdomain.SeverityInfo, p.SessionID, p.IP, &eventdomain.TokenLifecycle{
		SessionHash:   rec.SessionHash,
		SecurityLevel: string(level),
	})
	return &IssueResult{Token: value, ExpiresAt: rec.ExpiresAt, SecurityLevel: level}, nil
}

// Validate checks the token and atomically marks it used. A token validates
// successfully at most once; the second attempt reports ErrTokenNotFound even
// under concurrent validators.
func (s *Service) Validate(ctx context.Context, token, sessionID, ip string) error {
	now := s.nowF()
	hash := security.HashIdentifier(token)

	rec, err := s.repo.GetByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if rec == nil {
		s.reject(ctx, sessionID, ip, "TokenNotFound")
		return ErrTokenNotFound
	}
	// Used wins over expired: a consumed token stays consumed no matter how
	// much later the retry arrives.
	if rec.UsedAt != nil {
		s.reject(ctx, sessionID, ip, "TokenNotFound")
		return ErrTokenNotFound
	}
	if rec.Expired(now) {
		_ = s.repo.Deactivate(ctx, hash) // best effort; sweep will catch it
		s.reject(ctx, sessionID, ip, "TokenExpired")
		return ErrTokenExpired
	}
	if sessionID != "" && !security.HashEqual(sessionID, rec.SessionHash) {
		s.reject(ctx, sessionID, ip, "TokenSessionMismatch")
		return ErrSessionMismatch
	}

	won, err := s.repo.MarkUsed(ctx, hash, now, ip)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !won {
		// Lost the race or already used: indistinguishable to the caller.
		s.reject(ctx, sessionID, ip, "TokenNotFound")
		return ErrTokenNotFound
	}

	s.record(ctx, eventdomain.TypeTokenValidated, eventdomain.SeverityInfo, sessionID, ip, &eventdomain.TokenLifecycle{
		SessionHash: rec.SessionHash,
	})
	return nil
}

// Sweep deactivates expired tokens and purges old used rows. Implements the
// optimizer's TokenSweeper.
func (s *Service) Sweep(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.Sweep(ctx, now)
}

func (s *Service) reject(ctx context.Context, sessionID, ip, reason string) {
	s.record(ctx, eventdomain.TypeTokenRejected, eventdomain.SeverityMedium, sessionID, ip, &eventdomain.TokenLifecycle{
		SessionHash: security.HashIdentifier(sessionID),
		Reason:      reason,
	})
}

func (s *Service) record(ctx context.Context, eventType string, sev eventdomain.Severity, sessionID, ip string, payload *eventdomain.TokenLifecycle) {
	if s.events == nil {
		return
	}
	s.events.RecordBestEffort(ctx, &eventdomain.Event{
		Type:      eventType,
		Severity:  sev,
		Source:    "token_service",
		SessionID: sessionID,
		IPAddress: ip,
		Payload:   *payload,
	})
}

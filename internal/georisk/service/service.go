// Package service scores the geographic and network risk of a client address.
package service

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"go.uber.org/zap"

	alertdomain "trustgate/internal/alert/domain"
	eventdomain "trustgate/internal/event/domain"
	"trustgate/internal/georisk/domain"
	"trustgate/internal/georisk/lookup"
)

// Scoring weights and decision thresholds.
const (
	weightBlockedCountry = 100
	weightNotAllowlisted = 40
	weightProxy          = 30
	weightVPN            = 25
	weightTor            = 50
	weightDatacenter     = 20

	blockThreshold = 70
	flagThreshold  = 40

	unknownRiskScore = 50 // lookup failure: unknown network, medium risk
)

// ErrInvalidIP is returned for addresses that do not parse.
var ErrInvalidIP = errors.New("invalid ip address")

// TierResolver maps a country code to its policy tier.
type TierResolver interface {
	Tier(ctx context.Context, country string) domain.Tier
}

// EventSink records security events without affecting the assessment.
type EventSink interface {
	RecordBestEffort(ctx context.Context, e *eventdomain.Event)
}

// Alerter raises an alert record for blocked addresses. Best-effort.
type Alerter interface {
	Raise(ctx context.Context, a *alertdomain.Alert)
}

// Service assesses addresses.
type Service struct {
	resolver lookup.Resolver
	tiers    TierResolver
	events   EventSink
	alerts   Alerter
	timeout  time.Duration
	logger   *zap.Logger
}

// New returns a geo risk service. events and alerts may be nil.
func New(resolver lookup.Resolver, tiers TierResolver, events EventSink, alerts Alerter, timeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{
		resolver: resolver,
		tiers:    tiers,
		events:   events,
		alerts:   alerts,
		timeout:  timeout,
		logger:   logger,
	}
}

// Assess scores the address. Private and loopback addresses short-circuit to
// zero risk; lookup failure degrades to an unknown, medium-risk assessment.
func (s *Service) Assess(ctx context.Context, ip, actorID string) (*domain.Assessment, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, ErrInvalidIP
	}
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() {
		a := &domain.Assessment{
			IP:          ip,
			Tier:        domain.TierAllowed,
			RiskScore:   0,
			ThreatLevel: domain.ThreatLow,
			Allowed:     true,
		}
		s.record(ctx, actorID, a)
		return a, nil
	}

	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	info, err := s.resolver.Resolve(lctx, ip)
	if err != nil {
		s.logger.Warn("geo lookup failed", zap.String("ip", ip), zap.Error(err))
		a := &domain.Assessment{
			IP:          ip,
			Tier:        domain.TierNeutral,
			RiskScore:   unknownRiskScore,
			ThreatLevel: domain.LevelForScore(unknownRiskScore),
			Allowed:     true,
			Flagged:     true,
			Unknown:     true,
		}
		s.record(ctx, actorID, a)
		return a, nil
	}

	tier := s.tiers.Tier(ctx, info.Country)
	a := s.score(ip, info, tier)
	s.record(ctx, actorID, a)
	return a, nil
}

func (s *Service) score(ip string, info *domain.GeoInfo, tier domain.Tier) *domain.Assessment {
	score := 0
	if tier == domain.TierBlocked {
		score += weightBlockedCountry
	}
	if tier != domain.TierAllowed {
		score += weightNotAllowlisted
	}
	if info.Proxy {
		score += weightProxy
	}
	if info.VPN {
		score += weightVPN
	}
	if info.Tor {
		score += weightTor
	}
	if info.Datacenter {
		score += weightDatacenter
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	a := &domain.Assessment{
		IP:          ip,
		Country:     info.Country,
		ISP:         info.ISP,
		Tier:        tier,
		Proxy:       info.Proxy,
		VPN:         info.VPN,
		Tor:         info.Tor,
		Datacenter:  info.Datacenter,
		RiskScore:   score,
		ThreatLevel: domain.LevelForScore(score),
	}
	switch {
	case tier == domain.TierBlocked:
		// Block-listed countries are denied no matter the numeric score.
		a.Allowed = false
		a.Reason = domain.ReasonGeoBlocked
	case score >= blockThreshold:
		a.Allowed = false
		a.Reason = domain.ReasonGeoHighRisk
	case score >= flagThreshold:
		a.Allowed = true
		a.Flagged = true
	default:
		a.Allowed = true
	}
	return a
}

func (s *Service) record(ctx context.Context, actorID string, a *domain.Assessment) {
	if s.events != nil {
		severity := eventdomain.SeverityInfo
		switch {
		case !a.Allowed:
			severity = eventdomain.SeverityCritical
		case a.Flagged:
			severity = eventdomain.SeverityMedium
		}
		s.events.RecordBestEffort(ctx, &eventdomain.Event{
			Type:      eventdomain.TypeGeoAssessment,
			Severity:  severity,
			Source:    "geo-evaluator",
			ActorID:   actorID,
			IPAddress: a.IP,
			Payload: eventdomain.GeoAssessmentPayload{
				Country:     a.Country,
				ISP:         a.ISP,
				RiskScore:   a.RiskScore,
				ThreatLevel: string(a.ThreatLevel),
				Allowed:     a.Allowed,
				Flagged:     a.Flagged,
			},
		})
	}
	if s.alerts != nil && !a.Allowed {
		s.alerts.Raise(ctx, &alertdomain.Alert{
			Severity:   alertdomain.SeverityCritical,
			Category:   "geo",
			ReasonCode: a.Reason,
			ActorID:    actorID,
			IPAddress:  a.IP,
			Details: map[string]any{
				"country":   a.Country,
				"riskScore": a.RiskScore,
				"tier":      string(a.Tier),
			},
		})
	}
}

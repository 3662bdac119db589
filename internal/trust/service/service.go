// Package service decides whether a sensitive operation may proceed by
// combining a caller-supplied trust score with recent event history and
// device familiarity.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	eventdomain "trustgate/internal/event/domain"
)

// Level is the elevation target requested by the caller.
type Level string

const (
	LevelNormal   Level = "normal"
	LevelElevated Level = "elevated"
	LevelCritical Level = "critical"
)

// Elevation methods reported in the result.
const (
	MethodAlreadySufficient = "AlreadySufficient"
	MethodScoreBoost        = "ScoreBoost"
	MethodDenied            = "Denied"
)

// ErrUnknownLevel is returned for elevation targets outside the enum.
var ErrUnknownLevel = errors.New("unknown elevation level")

// Per-level thresholds, base-score gates, and boost caps.
var levelParams = map[Level]struct {
	threshold int
	baseGate  int
	maxBoost  int
}{
	LevelNormal:   {threshold: 70, baseGate: 50, maxBoost: 20},
	LevelElevated: {threshold: 85, baseGate: 60, maxBoost: 25},
	LevelCritical: {threshold: 95, baseGate: 75, maxBoost: 20},
}

// Penalty weights and history windows.
const (
	penaltyPerCritical = 5
	penaltyPerHigh     = 2
	penaltyNewDevice   = 10
	eventWindow        = 24 * time.Hour
	deviceWindow       = 7 * 24 * time.Hour
)

// ReasonInsufficientBaseScore marks a denial where the base score never
// qualified for a boost attempt.
const ReasonInsufficientBaseScore = "InsufficientBaseScore"

// Result of one elevation attempt.
type Result struct {
	Success       bool     `json:"success"`
	NewScore      int      `json:"newScore"`
	Method        string   `json:"method"`
	Reason        string   `json:"reason,omitempty"`
	RequiredSteps []string `json:"requiredSteps,omitempty"`
}

// EventCounts is the slice of the event store the orchestrator reads.
type EventCounts interface {
	CountBySeveritySince(ctx context.Context, actorID string, severity eventdomain.Severity, since time.Time) (int, error)
}

// DeviceHistory reports the fingerprints recently seen for a user.
type DeviceHistory interface {
	ListFingerprintsByUserSince(ctx context.Context, userID string, since time.Time) ([]string, error)
}

// EventSink records security events without affecting the result.
type EventSink interface {
	RecordBestEffort(ctx context.Context, e *eventdomain.Event)
}

// Service orchestrates trust elevation.
type Service struct {
	counts  EventCounts
	devices DeviceHistory
	events  EventSink
	logger  *zap.Logger
	nowF    func() time.Time
}

// New returns a trust elevation service. events may be nil.
func New(counts EventCounts, devices DeviceHistory, events EventSink, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		counts:  counts,
		devices: devices,
		events:  events,
		logger:  logger,
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// Elevate computes the elevation verdict for the user. The returned score is
// clamped to [0, 100] and never drops below currentScore. Store failures
// count as zero recent events; the unknown-device penalty still applies when
// the fingerprint history cannot be read.
func (s *Service) Elevate(ctx context.Context, userID string, currentScore int, level Level, fingerprint, ip string) (*Result, error) {
	params, ok := levelParams[level]
	if !ok {
		return nil, ErrUnknownLevel
	}
	if currentScore < 0 {
		currentScore = 0
	}
	if currentScore > 100 {
		currentScore = 100
	}
	now := s.nowF()

	if currentScore >= params.threshold {
		res := &Result{Success: true, NewScore: currentScore, Method: MethodAlreadySufficient}
		s.record(ctx, userID, ip, currentScore, level, 0, 0, 0, true, res)
		return res, nil
	}

	if currentScore < params.baseGate {
		res := &Result{
			Success:       false,
			NewScore:      currentScore,
			Method:        MethodDenied,
			Reason:        ReasonInsufficientBaseScore,
			RequiredSteps: []string{"Full re-authentication required"},
		}
		s.record(ctx, userID, ip, currentScore, level, 0, 0, 0, true, res)
		return res, nil
	}

	critical := s.countSeverity(ctx, userID, eventdomain.SeverityCritical, now)
	high := s.countSeverity(ctx, userID, eventdomain.SeverityHigh, now)
	known := s.deviceKnown(ctx, userID, fingerprint, now)

	boost := params.threshold - currentScore
	if boost > params.maxBoost {
		boost = params.maxBoost
	}
	boost -= penaltyPerCritical*critical + penaltyPerHigh*high

	var steps []string
	if !known {
		boost -= penaltyNewDevice
		steps = append(steps, "New device verification required")
	}
	if boost < 0 {
		boost = 0
	}

	newScore := currentScore + boost
	if newScore > 100 {
		newScore = 100
	}
	res := &Result{
		Success:       newScore >= params.threshold,
		NewScore:      newScore,
		Method:        MethodScoreBoost,
		RequiredSteps: steps,
	}
	if !res.Success {
		res.Method = MethodDenied
		res.RequiredSteps = append(res.RequiredSteps, "Additional verification required")
	}
	s.record(ctx, userID, ip, currentScore, level, boost, critical, high, known, res)
	return res, nil
}

// countSeverity reads one severity count; failures degrade to zero and are
// logged.
func (s *Service) countSeverity(ctx context.Context, userID string, severity eventdomain.Severity, now time.Time) int {
	n, err := s.counts.CountBySeveritySince(ctx, userID, severity, now.Add(-eventWindow))
	if err != nil {
		s.logger.Warn("event count failed",
			zap.String("user", userID), zap.String("severity", string(severity)), zap.Error(err))
		return 0
	}
	return n
}

// deviceKnown reports whether the fingerprint appears in the user's trailing
// device history. A failed read treats the device as unknown.
func (s *Service) deviceKnown(ctx context.Context, userID, fingerprint string, now time.Time) bool {
	if fingerprint == "" {
		return false
	}
	fps, err := s.devices.ListFingerprintsByUserSince(ctx, userID, now.Add(-deviceWindow))
	if err != nil {
		s.logger.Warn("fingerprint history failed", zap.String("user", userID), zap.Error(err))
		return false
	}
	for _, fp := range fps {
		if fp == fingerprint {
			return true
		}
	}
	return false
}

// record logs the attempt with its full computation context.
func (s *Service) record(ctx context.Context, userID, ip string, currentScore int, level Level, boost, critical, high int, known bool, res *Result) {
	if s.events == nil {
		return
	}
	severity := eventdomain.SeverityInfo
	if !res.Success {
		severity = eventdomain.SeverityMedium
	}
	s.events.RecordBestEffort(ctx, &eventdomain.Event{
		Type:      eventdomain.TypeTrustElevation,
		Severity:  severity,
		Source:    "trust-orchestrator",
		ActorID:   userID,
		IPAddress: ip,
		Payload: eventdomain.TrustElevationPayload{
			CurrentScore:   currentScore,
			NewScore:       res.NewScore,
			RequiredLevel:  string(level),
			ScoreBoost:     boost,
			CriticalEvents: critical,
			HighEvents:     high,
			KnownDevice:    known,
			Success:        res.Success,
			Method:         res.Method,
			RequiredSteps:  res.RequiredSteps,
		},
	})
}

// Package domain defines the security event written by every gateway component.
package domain

import (
	"encoding/json"
	"time"
)

// Severity classifies how risky the recorded event is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Event types written by the gateway components.
const (
	TypeTokenIssued       = "token_issued"
	TypeTokenValidated    = "token_validated"
	TypeTokenRejected     = "token_rejected"
	TypeRateLimitAttempt  = "rate_limit_attempt"
	TypeRateLimitExceeded = "rate_limit_exceeded"
	TypeSessionValidation = "session_validation"
	TypeGeoAssessment     = "geo_assessment"
	TypeTrustElevation    = "trust_elevation"
	TypeClientLog         = "client_log"
)

// Event is one immutable security event. The filter decides admission before
// the write, never after.
type Event struct {
	ID        string
	Type      string
	Severity  Severity
	Source    string
	ActorID   string
	SessionID string
	IPAddress string
	Payload   Payload // nil when the event carries no structured payload
	CreatedAt time.Time
}

// Payload is the structured, per-type event payload. Concrete types below form
// a tagged union; unknown payloads round-trip through Other.
type Payload interface {
	PayloadKind() string
}

// RateLimitAttempt records one rate-limit check against an endpoint.
type RateLimitAttempt struct {
	Endpoint   string `json:"endpoint"`
	Identifier string `json:"identifier"`
	Attempts   int    `json:"attempts"`
	Blocked    bool   `json:"blocked"`
}

func (RateLimitAttempt) PayloadKind() string { return "rate_limit_attempt" }

// GeoAssessmentPayload records the outcome of a geographic risk assessment.
type GeoAssessmentPayload struct {
	Country     string `json:"country"`
	ISP         string `json:"isp"`
	RiskScore   int    `json:"riskScore"`
	ThreatLevel string `json:"threatLevel"`
	Allowed     bool   `json:"allowed"`
	Flagged     bool   `json:"flagged"`
}

func (GeoAssessmentPayload) PayloadKind() string { return "geo_assessment" }

// TrustElevationPayload records a trust elevation attempt with its full
// computation context for audit.
type TrustElevationPayload struct {
	CurrentScore   int      `json:"currentScore"`
	NewScore       int      `json:"newScore"`
	RequiredLevel  string   `json:"requiredLevel"`
	ScoreBoost     int      `json:"scoreBoost"`
	CriticalEvents int      `json:"criticalEvents"`
	HighEvents     int      `json:"highEvents"`
	KnownDevice    bool     `json:"knownDevice"`
	Success        bool     `json:"success"`
	Method         string   `json:"method"`
	RequiredSteps  []string `json:"requiredSteps,omitempty"`
}

func (TrustElevationPayload) PayloadKind() string { return "trust_elevation" }

// SessionValidationPayload records a session trust verdict.
type SessionValidationPayload struct {
	Valid           bool     `json:"valid"`
	Reason          string   `json:"reason,omitempty"`
	SecurityLevel   string   `json:"securityLevel"`
	RequiredActions []string `json:"requiredActions,omitempty"`
	Fingerprint     string   `json:"fingerprint,omitempty"`
}

func (SessionValidationPayload) PayloadKind() string { return "session_validation" }

// TokenLifecycle records token issue/validate outcomes.
type TokenLifecycle struct {
	SessionHash   string `json:"sessionHash"`
	SecurityLevel string `json:"securityLevel,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Fallback      bool   `json:"fallback,omitempty"`
}

func (TokenLifecycle) PayloadKind() string { return "token_lifecycle" }

// ClientLog is a free-form client-reported entry; short retention.
type ClientLog struct {
	Message string `json:"message"`
	Level   string `json:"level,omitempty"`
}

func (ClientLog) PayloadKind() string { return "client_log" }

// Other holds a payload the gateway does not model; kept raw for forward
// compatibility.
type Other struct {
	Raw json.RawMessage
}

func (Other) PayloadKind() string { return "other" }

// MarshalJSON emits the raw payload unchanged.
func (o Other) MarshalJSON() ([]byte, error) {
	if len(o.Raw) == 0 {
		return []byte("null"), nil
	}
	return o.Raw, nil
}

// EncodePayload serializes a payload for the JSONB column. Returns nil for a
// nil payload.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// DecodePayload maps a stored payload back to its tagged type using the event
// type; anything unrecognized comes back as Other.
func DecodePayload(eventType string, raw []byte) (Payload, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch eventType {
	case TypeRateLimitAttempt, TypeRateLimitExceeded:
		var p RateLimitAttempt
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeGeoAssessment:
		var p GeoAssessmentPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeTrustElevation:
		var p TrustElevationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeSessionValidation:
		var p SessionValidationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeTokenIssued, TypeTokenValidated, TypeTokenRejected:
		var p TokenLifecycle
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeClientLog:
		var p ClientLog
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		cp := make(json.RawMessage, len(raw))
		copy(cp, raw)
		return Other{Raw: cp}, nil
	}
}

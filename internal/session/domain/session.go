// Package domain defines the session record and the trust verdict computed
// over it.
package domain

import "time"

// Level is the security level attached to a session or a verdict. Escalation
// only moves upward.
type Level string

const (
	LevelStandard Level = "standard"
	LevelEnhanced Level = "enhanced"
	LevelCritical Level = "critical"
)

// rank orders levels for escalation.
func (l Level) rank() int {
	switch l {
	case LevelCritical:
		return 2
	case LevelEnhanced:
		return 1
	default:
		return 0
	}
}

// Escalate returns the higher of the two levels.
func (l Level) Escalate(to Level) Level {
	if to.rank() > l.rank() {
		return to
	}
	return l
}

// Invalidity reasons. First matching rule wins; the verdict carries exactly one.
const (
	ReasonNoActiveSession          = "NoActiveSession"
	ReasonUnknownDevice            = "UnknownDevice"
	ReasonSessionExpiredForDevice  = "SessionExpiredForDevice"
	ReasonSessionTooOld            = "SessionTooOld"
	ReasonCriticalEventsDetected   = "CriticalEventsDetected"
	ReasonAutomatedAttackSuspected = "AutomatedAttackSuspected"
	ReasonStoreUnavailable         = "StoreUnavailable"
)

// Session is one user/device session row.
type Session struct {
	ID            string
	UserID        string
	Fingerprint   string
	IPAddress     string
	SecurityLevel Level
	Active        bool
	CreatedAt     time.Time
	LastActivity  time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Verdict is the outcome of one session trust validation. The reason is the
// first rule that failed; the security level and required actions accumulate
// across all rules inspected.
type Verdict struct {
	Valid           bool
	Reason          string
	SecurityLevel   Level
	RequiredActions []string
}

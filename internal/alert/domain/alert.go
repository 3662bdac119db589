// Package domain defines the alert record raised for critical denials.
package domain

import "time"

// Severity of an alert. Critical denials raise critical alerts; everything
// else the gateway records stays in the event store.
type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is one operator-facing record. Immutable once written.
type Alert struct {
	ID         string
	Severity   Severity
	Category   string // originating component, e.g. "session", "geo"
	ReasonCode string
	ActorID    string
	IPAddress  string
	Details    map[string]any
	CreatedAt  time.Time
}

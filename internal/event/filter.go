// Package event provides the write path for security events: admission
// filtering, recording, and periodic store compaction.
package event

import (
	"sync"
	"time"

	"trustgate/internal/event/domain"
)

// dedupWindow is how long a repeated low-value event of the same
// (type, source) is suppressed after a write.
const dedupWindow = 5 * time.Minute

// Filter decides, before the write, whether an event is novel enough to log.
type Filter interface {
	// ShouldLog reports whether the event should be written. Implementations
	// must never suppress critical events.
	ShouldLog(eventType string, severity domain.Severity, source string) bool
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(eventType string, severity domain.Severity, source string) bool

// ShouldLog calls f.
func (f FilterFunc) ShouldLog(eventType string, severity domain.Severity, source string) bool {
	return f(eventType, severity, source)
}

// DedupFilter suppresses repeated info/low events of the same (type, source)
// within dedupWindow. Medium and above always pass, as do exempt types whose
// every occurrence is load-bearing (rate-limit attempt counting).
type DedupFilter struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	exempt map[string]struct{}
	nowF   func() time.Time
}

// NewDedupFilter returns a DedupFilter with the default suppression window.
func NewDedupFilter() *DedupFilter {
	return &DedupFilter{
		window: dedupWindow,
		seen:   make(map[string]time.Time),
		exempt: map[string]struct{}{domain.TypeRateLimitAttempt: {}},
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

// ShouldLog reports whether the event passes the dedup policy. Critical events
// always pass regardless of repetition.
func (f *DedupFilter) ShouldLog(eventType string, severity domain.Severity, source string) bool {
	if severity != domain.SeverityInfo && severity != domain.SeverityLow {
		return true
	}
	if _, ok := f.exempt[eventType]; ok {
		return true
	}
	key := eventType + "\x00" + source
	now := f.nowF()

	f.mu.Lock()
	defer f.mu.Unlock()
	if last, ok := f.seen[key]; ok && now.Sub(last) < f.window {
		return false
	}
	f.seen[key] = now
	f.prune(now)
	return true
}

// prune drops expired entries so the map does not grow unbounded. Caller must
// hold f.mu.
func (f *DedupFilter) prune(now time.Time) {
	if len(f.seen) < 1024 {
		return
	}
	for k, t := range f.seen {
		if now.Sub(t) >= f.window {
			delete(f.seen, k)
		}
	}
}

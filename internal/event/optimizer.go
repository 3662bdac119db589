package event

import (
	"context"
	"time"

	"go.uber.org/zap"

	"trustgate/internal/event/domain"
	"trustgate/internal/event/repository"
)

// Retention horizons for noisy, low-value event categories. Everything else
// is kept indefinitely.
const (
	clientLogRetention   = 30 * time.Minute
	lowPriorityRetention = 24 * time.Hour
)

// lowPrioritySeverities are compacted after lowPriorityRetention.
var lowPrioritySeverities = []domain.Severity{domain.SeverityInfo, domain.SeverityLow}

// TokenSweeper expires and purges stale token rows during a maintenance pass.
type TokenSweeper interface {
	// Sweep deactivates expired tokens and deletes long-used rows. Returns the
	// number of rows touched.
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

// Report holds the counts removed by one maintenance pass.
type Report struct {
	ClientLogsRemoved  int64 `json:"clientLogsRemoved"`
	LowPriorityRemoved int64 `json:"lowPriorityRemoved"`
	TokensSwept        int64 `json:"tokensSwept"`
}

// Optimizer compacts the event store on a schedule. Runs are idempotent and
// safe to execute concurrently with ingestion: deletion is purely
// cutoff-based, so a racing insert is never older than the cutoff.
type Optimizer struct {
	repo    repository.Repository
	sweeper TokenSweeper // may be nil
	logger  *zap.Logger
	nowF    func() time.Time
}

// NewOptimizer returns an Optimizer over the given store.
func NewOptimizer(repo repository.Repository, sweeper TokenSweeper, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		repo:    repo,
		sweeper: sweeper,
		logger:  logger,
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// Run performs one maintenance pass and reports counts removed. Partial
// failure returns the error along with whatever was already removed.
func (o *Optimizer) Run(ctx context.Context) (Report, error) {
	now := o.nowF()
	var rep Report

	n, err := o.repo.DeleteByTypesOlderThan(ctx, []string{domain.TypeClientLog}, now.Add(-clientLogRetention))
	if err != nil {
		return rep, err
	}
	rep.ClientLogsRemoved = n

	n, err = o.repo.DeleteBySeveritiesOlderThan(ctx, lowPrioritySeverities, now.Add(-lowPriorityRetention))
	if err != nil {
		return rep, err
	}
	rep.LowPriorityRemoved = n

	if o.sweeper != nil {
		n, err = o.sweeper.Sweep(ctx, now)
		if err != nil {
			return rep, err
		}
		rep.TokensSwept = n
	}

	o.logger.Info("event store compacted",
		zap.Int64("client_logs_removed", rep.ClientLogsRemoved),
		zap.Int64("low_priority_removed", rep.LowPriorityRemoved),
		zap.Int64("tokens_swept", rep.TokensSwept),
	)
	return rep, nil
}

// Loop runs maintenance every interval until ctx is cancelled. Errors are
// logged; the loop keeps going.
func (o *Optimizer) Loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.Run(ctx); err != nil {
				o.logger.Error("event store compaction failed", zap.Error(err))
			}
		}
	}
}

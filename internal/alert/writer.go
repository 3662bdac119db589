// Package alert raises operator-facing alert records for critical denials.
package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trustgate/internal/alert/domain"
	"trustgate/internal/alert/repository"
)

// Raiser raises one alert. Best-effort: failures are logged and do not affect
// the caller's decision.
type Raiser interface {
	Raise(ctx context.Context, a *domain.Alert)
}

// Writer implements Raiser over the alert repository.
type Writer struct {
	repo   repository.Repository
	logger *zap.Logger
	nowF   func() time.Time
}

// NewWriter returns a Writer. repo may be nil; alerts are then dropped.
func NewWriter(repo repository.Repository, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		repo:   repo,
		logger: logger,
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

// Raise persists the alert, assigning ID and CreatedAt when unset. Errors are
// logged and swallowed.
func (w *Writer) Raise(ctx context.Context, a *domain.Alert) {
	if w.repo == nil || a == nil {
		return
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = w.nowF()
	}
	if err := w.repo.Create(ctx, a); err != nil {
		w.logger.Error("alert write failed",
			zap.String("category", a.Category),
			zap.String("reason", a.ReasonCode),
			zap.Error(err))
	}
}

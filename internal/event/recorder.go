package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trustgate/internal/event/domain"
	"trustgate/internal/event/repository"
)

// emitTimeout is the max time allowed for a single async downstream emit.
const emitTimeout = 5 * time.Second

// Emitter forwards a recorded event to a downstream sink (e.g. Kafka).
// Best-effort; the recorder logs and ignores errors.
type Emitter interface {
	Emit(ctx context.Context, e *domain.Event) error
}

// Recorder is the single write path into the event store: filter, persist,
// then fan out to the emitter asynchronously.
type Recorder struct {
	repo    repository.Repository
	filter  Filter
	emitter Emitter // may be nil
	logger  *zap.Logger
	nowF    func() time.Time
}

// NewRecorder returns a Recorder. filter may be nil (everything is logged);
// emitter may be nil (no downstream fan-out).
func NewRecorder(repo repository.Repository, filter Filter, emitter Emitter, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		repo:    repo,
		filter:  filter,
		emitter: emitter,
		logger:  logger,
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// Record writes one event, assigning ID and CreatedAt when unset. A filtered
// event is dropped silently and is not an error. Store failures are returned
// so callers can apply their component's safe default.
func (r *Recorder) Record(ctx context.Context, e *domain.Event) error {
	if e == nil {
		return nil
	}
	if r.filter != nil && !r.filter.ShouldLog(e.Type, e.Severity, e.Source) {
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.nowF()
	}
	if err := r.repo.Insert(ctx, e); err != nil {
		r.logger.Error("event insert failed", zap.String("type", e.Type), zap.Error(err))
		return err
	}
	r.emitAsync(e)
	return nil
}

// RecordBestEffort is Record for call sites where a failed write must not
// change the outcome; the error is logged and swallowed.
func (r *Recorder) RecordBestEffort(ctx context.Context, e *domain.Event) {
	_ = r.Record(ctx, e)
}

// emitAsync forwards the event to the emitter without blocking the caller.
// Uses context.Background so request cancellation does not abort the emit.
func (r *Recorder) emitAsync(e *domain.Event) {
	if r.emitter == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := r.emitter.Emit(ctx, e); err != nil {
			r.logger.Warn("event emit failed", zap.String("type", e.Type), zap.Error(err))
		}
	}()
}

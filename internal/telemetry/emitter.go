// Package telemetry forwards security events to external sinks: OTel logs and
// Kafka. Every sink is best-effort; the gateway's decisions never depend on a
// sink being reachable.
package telemetry

import (
	"context"
	"errors"
	"time"

	"trustgate/internal/event/domain"
)

// ShutdownDrainDuration is how long to wait after the HTTP server stops before
// shutting down the OTel providers, so in-flight async emits can complete.
const ShutdownDrainDuration = 5 * time.Second

// Emitter sends one event downstream. Callers log and ignore errors.
type Emitter interface {
	Emit(ctx context.Context, e *domain.Event) error
}

type multi []Emitter

// Multi fans one event out to every sink. Nil sinks are skipped; errors are
// joined so one slow sink never hides another's failure.
func Multi(emitters ...Emitter) Emitter {
	var m multi
	for _, e := range emitters {
		if e != nil {
			m = append(m, e)
		}
	}
	return m
}

func (m multi) Emit(ctx context.Context, e *domain.Event) error {
	var errs []error
	for _, em := range m {
		if err := em.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

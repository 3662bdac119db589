package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	eventdomain "trustgate/internal/event/domain"
	"trustgate/internal/telemetry"
)

// NewEmitter returns an Emitter that sends events as OTel log records via the
// given LoggerProvider. If provider is nil, a no-op emitter is returned.
func NewEmitter(provider *sdklog.LoggerProvider) telemetry.Emitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("trustgate.events")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *eventdomain.Event) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the event to an OTel log record. Best-effort.
func (e *otelEmitter) Emit(ctx context.Context, event *eventdomain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if event.Payload != nil {
		if raw, err := json.Marshal(event.Payload); err == nil {
			rec.SetBody(otellog.BytesValue(raw))
		}
	}
	rec.AddAttributes(otellog.String("event_type", event.Type))
	rec.AddAttributes(otellog.String("severity", string(event.Severity)))
	if event.Source != "" {
		rec.AddAttributes(otellog.String("source", event.Source))
	}
	if event.ActorID != "" {
		rec.AddAttributes(otellog.String("actor_id", event.ActorID))
	}
	if event.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", event.SessionID))
	}
	if event.IPAddress != "" {
		rec.AddAttributes(otellog.String("ip_address", event.IPAddress))
	}
	e.logger.Emit(ctx, rec)
	return nil
}

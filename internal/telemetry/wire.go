package telemetry

import (
	"encoding/json"
	"time"

	"trustgate/internal/event/domain"
)

// wireEvent is the JSON shape events travel in between the gateway, Kafka,
// and the log shipper. Field names are part of the pipeline contract.
type wireEvent struct {
	ID        string          `json:"id,omitempty"`
	EventType string          `json:"eventType"`
	Severity  string          `json:"severity"`
	Source    string          `json:"source,omitempty"`
	ActorID   string          `json:"actorId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	IPAddress string          `json:"ipAddress,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt string          `json:"createdAt"`
}

// Encode serializes an event into the pipeline's JSON shape.
func Encode(e *domain.Event) ([]byte, error) {
	w := wireEvent{
		ID:        e.ID,
		EventType: e.Type,
		Severity:  string(e.Severity),
		Source:    e.Source,
		ActorID:   e.ActorID,
		SessionID: e.SessionID,
		IPAddress: e.IPAddress,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		w.Payload = raw
	}
	return json.Marshal(w)
}

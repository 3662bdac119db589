// Package handler exposes client event ingestion and store maintenance over
// JSON HTTP.
package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"trustgate/internal/event"
	"trustgate/internal/event/domain"
	"trustgate/internal/server"
)

// Recorder is the event write path the handler uses.
type Recorder interface {
	Record(ctx context.Context, e *domain.Event) error
}

// Maintainer runs one compaction pass.
type Maintainer interface {
	Run(ctx context.Context) (event.Report, error)
}

// HTTP handles the event endpoints.
type HTTP struct {
	recorder  Recorder
	optimizer Maintainer
	logger    *zap.Logger
}

// NewHTTP returns the event handler.
func NewHTTP(recorder Recorder, optimizer Maintainer, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{recorder: recorder, optimizer: optimizer, logger: logger}
}

type ingestRequest struct {
	Message string `json:"message"`
	Level   string `json:"level,omitempty"`
	Source  string `json:"source,omitempty"`
}

type ingestResponse struct {
	Logged bool `json:"logged"`
}

// Ingest handles POST /v1/events. Client-reported entries are stored as
// client_log events; their severity is capped at low so a client can never
// plant events that trip the critical or high severity rules.
func (h *HTTP) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Message == "" {
		server.WriteError(w, http.StatusBadRequest, "message is required")
		return
	}
	source := req.Source
	if source == "" {
		source = "client"
	}
	severity := domain.SeverityInfo
	if req.Level == "low" {
		severity = domain.SeverityLow
	}
	userID, _ := server.UserID(r.Context())
	sessionID, _ := server.SessionID(r.Context())

	err := h.recorder.Record(r.Context(), &domain.Event{
		Type:      domain.TypeClientLog,
		Severity:  severity,
		Source:    source,
		ActorID:   userID,
		SessionID: sessionID,
		IPAddress: server.ClientIP(r.Context()),
		Payload:   domain.ClientLog{Message: req.Message, Level: req.Level},
	})
	if err != nil {
		server.WriteError(w, http.StatusServiceUnavailable, "event store unavailable")
		return
	}
	server.WriteJSON(w, http.StatusOK, ingestResponse{Logged: true})
}

// Maintenance handles POST /v1/events/maintenance, triggering one compaction
// pass and reporting what was removed.
func (h *HTTP) Maintenance(w http.ResponseWriter, r *http.Request) {
	report, err := h.optimizer.Run(r.Context())
	if err != nil {
		h.logger.Error("maintenance pass failed", zap.Error(err))
		server.WriteError(w, http.StatusServiceUnavailable, "maintenance pass failed")
		return
	}
	server.WriteJSON(w, http.StatusOK, report)
}

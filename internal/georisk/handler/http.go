// Package handler exposes geo risk assessment over JSON HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"trustgate/internal/georisk/domain"
	"trustgate/internal/georisk/service"
	"trustgate/internal/server"
)

// Assessor is the geo service surface the handler needs.
type Assessor interface {
	Assess(ctx context.Context, ip, actorID string) (*domain.Assessment, error)
}

// HTTP handles POST /v1/geo/assess.
type HTTP struct {
	svc    Assessor
	logger *zap.Logger
}

// NewHTTP returns the geo handler.
func NewHTTP(svc Assessor, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{svc: svc, logger: logger}
}

type assessRequest struct {
	IP string `json:"ip,omitempty"` // defaults to the caller's address
}

// Assess scores the given address, or the caller's own when none is supplied.
func (h *HTTP) Assess(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	ip := req.IP
	if ip == "" {
		ip = server.ClientIP(r.Context())
	}
	actorID, _ := server.UserID(r.Context())

	a, err := h.svc.Assess(r.Context(), ip, actorID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidIP) {
			server.WriteError(w, http.StatusBadRequest, "invalid ip address")
			return
		}
		h.logger.Error("geo assessment failed", zap.Error(err))
		server.WriteError(w, http.StatusInternalServerError, "geo assessment failed")
		return
	}
	server.WriteJSON(w, http.StatusOK, a)
}

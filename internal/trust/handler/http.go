// Package handler exposes trust elevation over JSON HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"trustgate/internal/server"
	"trustgate/internal/trust/service"
)

// Elevator is the trust service surface the handler needs.
type Elevator interface {
	Elevate(ctx context.Context, userID string, currentScore int, level service.Level, fingerprint, ip string) (*service.Result, error)
}

// HTTP handles POST /v1/trust/elevate.
type HTTP struct {
	svc    Elevator
	logger *zap.Logger
}

// NewHTTP returns the trust handler.
func NewHTTP(svc Elevator, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{svc: svc, logger: logger}
}

type elevateRequest struct {
	UserID            string `json:"userId,omitempty"`
	CurrentScore      int    `json:"currentScore"`
	RequiredLevel     string `json:"requiredLevel"`
	DeviceFingerprint string `json:"deviceFingerprint,omitempty"`
}

// Elevate combines the caller's base score with recent history and device
// familiarity into an elevation verdict.
func (h *HTTP) Elevate(w http.ResponseWriter, r *http.Request) {
	var req elevateRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	userID := req.UserID
	if bearer, ok := server.UserID(r.Context()); ok && bearer != "" {
		userID = bearer
	}
	if userID == "" || req.RequiredLevel == "" {
		server.WriteError(w, http.StatusBadRequest, "userId and requiredLevel are required")
		return
	}

	res, err := h.svc.Elevate(r.Context(), userID, req.CurrentScore, service.Level(req.RequiredLevel),
		req.DeviceFingerprint, server.ClientIP(r.Context()))
	if err != nil {
		if errors.Is(err, service.ErrUnknownLevel) {
			server.WriteError(w, http.StatusBadRequest, "unknown requiredLevel")
			return
		}
		h.logger.Error("trust elevation failed", zap.Error(err))
		server.WriteError(w, http.StatusInternalServerError, "trust elevation failed")
		return
	}
	server.WriteJSON(w, http.StatusOK, res)
}

// Package handler exposes session trust validation over JSON HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"trustgate/internal/server"
	"trustgate/internal/session/domain"
)

// Validator is the session service surface the handler needs.
type Validator interface {
	Validate(ctx context.Context, userID, fingerprint, ip string) *domain.Verdict
	Start(ctx context.Context, userID, fingerprint, ip string) (*domain.Session, error)
}

// HTTP handles the session endpoints.
type HTTP struct {
	svc    Validator
	logger *zap.Logger
}

// NewHTTP returns the session handler.
func NewHTTP(svc Validator, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{svc: svc, logger: logger}
}

type validateRequest struct {
	UserID            string `json:"userId,omitempty"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

type validateResponse struct {
	Valid           bool     `json:"valid"`
	Reason          string   `json:"reason,omitempty"`
	SecurityLevel   string   `json:"securityLevel"`
	RequiredActions []string `json:"requiredActions,omitempty"`
}

// Validate handles POST /v1/sessions/validate. The user comes from the bearer
// identity when present, else from the body.
func (h *HTTP) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	userID := req.UserID
	if bearer, ok := server.UserID(r.Context()); ok && bearer != "" {
		userID = bearer
	}
	if userID == "" || req.DeviceFingerprint == "" {
		server.WriteError(w, http.StatusBadRequest, "userId and deviceFingerprint are required")
		return
	}

	v := h.svc.Validate(r.Context(), userID, req.DeviceFingerprint, server.ClientIP(r.Context()))
	server.WriteJSON(w, http.StatusOK, validateResponse{
		Valid:           v.Valid,
		Reason:          v.Reason,
		SecurityLevel:   string(v.SecurityLevel),
		RequiredActions: v.RequiredActions,
	})
}

type startRequest struct {
	UserID            string `json:"userId,omitempty"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

type startResponse struct {
	SessionID string `json:"sessionId"`
	ExpiresAt string `json:"expiresAt"`
}

// Start handles POST /v1/sessions, registering a session at login.
func (h *HTTP) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	userID := req.UserID
	if bearer, ok := server.UserID(r.Context()); ok && bearer != "" {
		userID = bearer
	}
	if userID == "" || req.DeviceFingerprint == "" {
		server.WriteError(w, http.StatusBadRequest, "userId and deviceFingerprint are required")
		return
	}

	sess, err := h.svc.Start(r.Context(), userID, req.DeviceFingerprint, server.ClientIP(r.Context()))
	if err != nil {
		h.logger.Error("session start failed", zap.Error(err))
		server.WriteError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	server.WriteJSON(w, http.StatusOK, startResponse{
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

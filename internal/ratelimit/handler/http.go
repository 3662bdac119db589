// Package handler exposes the rate limiter over JSON HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"trustgate/internal/ratelimit"
	"trustgate/internal/server"
)

// Checker is the limiter surface the handler needs.
type Checker interface {
	CheckAndRecord(ctx context.Context, endpoint, identifier, ip string, policy ratelimit.Policy) *ratelimit.Decision
}

// HTTP handles POST /v1/ratelimit/check.
type HTTP struct {
	limiter Checker
	logger  *zap.Logger
}

// NewHTTP returns the rate limit handler.
func NewHTTP(limiter Checker, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{limiter: limiter, logger: logger}
}

type checkRequest struct {
	Endpoint   string `json:"endpoint"`
	Identifier string `json:"identifier,omitempty"`
	FailClosed bool   `json:"failClosed,omitempty"`
}

type checkResponse struct {
	Allowed       bool   `json:"allowed"`
	Attempts      int    `json:"attempts"`
	MaxAttempts   int    `json:"maxAttempts"`
	ResetTime     string `json:"resetTime"`
	BlockDuration int    `json:"blockDuration,omitempty"` // seconds
	Reason        string `json:"reason,omitempty"`
	Degraded      bool   `json:"degraded,omitempty"`
}

// Check decides admit or block for (endpoint, identifier). The generic
// endpoint fails open unless the caller opts into fail-closed.
func (h *HTTP) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Endpoint == "" {
		server.WriteError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	policy := ratelimit.FailOpen
	if req.FailClosed {
		policy = ratelimit.FailClosed
	}
	identifier := req.Identifier
	if identifier == "" {
		if userID, ok := server.UserID(r.Context()); ok {
			identifier = userID
		}
	}

	d := h.limiter.CheckAndRecord(r.Context(), req.Endpoint, identifier, server.ClientIP(r.Context()), policy)
	resp := checkResponse{
		Allowed:       d.Allowed,
		Attempts:      d.Attempts,
		MaxAttempts:   d.MaxAttempts,
		ResetTime:     d.ResetTime.Format(time.RFC3339),
		BlockDuration: int(d.BlockDuration / time.Second),
		Degraded:      d.Degraded,
	}
	if !d.Allowed {
		resp.Reason = "RateLimitExceeded"
	}
	server.WriteJSON(w, http.StatusOK, resp)
}

// Package handler exposes token issue/validate over JSON HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"trustgate/internal/ratelimit"
	"trustgate/internal/server"
	"trustgate/internal/token/service"
)

// rateLimitEndpoint is the limiter key for token issuance. Security-critical
// path: the limiter fails closed here.
const rateLimitEndpoint = "token-issue"

// Issuer is the token service surface the handler needs.
type Issuer interface {
	Issue(ctx context.Context, p service.IssueParams) (*service.IssueResult, error)
	Validate(ctx context.Context, token, sessionID, ip string) error
}

// Limiter guards the issue path.
type Limiter interface {
	CheckAndRecord(ctx context.Context, endpoint, identifier, ip string, policy ratelimit.Policy) *ratelimit.Decision
}

// HTTP handles the token endpoints.
type HTTP struct {
	svc     Issuer
	limiter Limiter // may be nil
	logger  *zap.Logger
}

// NewHTTP returns the token handler. limiter may be nil.
func NewHTTP(svc Issuer, limiter Limiter, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{svc: svc, limiter: limiter, logger: logger}
}

type issueRequest struct {
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	UserAgent string `json:"userAgent,omitempty"`
	Entropy   string `json:"entropy,omitempty"`
	Rotation  bool   `json:"rotation,omitempty"`
	Enhanced  bool   `json:"enhanced,omitempty"`
}

type issueResponse struct {
	Success       bool   `json:"success"`
	Token         string `json:"token,omitempty"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
	SecurityLevel string `json:"securityLevel,omitempty"`
	Reason        string `json:"reason,omitempty"`
	BlockDuration int    `json:"blockDuration,omitempty"` // seconds
}

// Issue handles POST /v1/tokens.
func (h *HTTP) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.SessionID == "" || req.Timestamp == 0 {
		server.WriteError(w, http.StatusBadRequest, "sessionId and timestamp are required")
		return
	}
	ip := server.ClientIP(r.Context())

	if h.limiter != nil {
		d := h.limiter.CheckAndRecord(r.Context(), rateLimitEndpoint, req.SessionID, ip, ratelimit.FailClosed)
		if !d.Allowed {
			server.WriteJSON(w, http.StatusOK, issueResponse{
				Success:       false,
				Reason:        "RateLimitExceeded",
				BlockDuration: int(d.BlockDuration / time.Second),
			})
			return
		}
	}

	res, err := h.svc.Issue(r.Context(), service.IssueParams{
		SessionID: req.SessionID,
		Timestamp: time.UnixMilli(req.Timestamp).UTC(),
		UserAgent: req.UserAgent,
		Entropy:   req.Entropy,
		Rotation:  req.Rotation,
		Enhanced:  req.Enhanced,
		IP:        ip,
	})
	switch {
	case err == nil:
		server.WriteJSON(w, http.StatusOK, issueResponse{
			Success:       true,
			Token:         res.Token,
			ExpiresAt:     res.ExpiresAt.Format(time.RFC3339),
			SecurityLevel: string(res.SecurityLevel),
		})
	case errors.Is(err, service.ErrReplayWindow):
		server.WriteJSON(w, http.StatusOK, issueResponse{Success: false, Reason: "ReplayWindowViolation"})
	case errors.Is(err, service.ErrStoreUnavailable):
		server.WriteError(w, http.StatusServiceUnavailable, "token store unavailable")
	default:
		h.logger.Error("token issue failed", zap.Error(err))
		server.WriteError(w, http.StatusInternalServerError, "token issue failed")
	}
}

type validateRequest struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId,omitempty"`
}

type validateResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Validate handles POST /v1/tokens/validate.
func (h *HTTP) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Token == "" {
		server.WriteError(w, http.StatusBadRequest, "token is required")
		return
	}

	err := h.svc.Validate(r.Context(), req.Token, req.SessionID, server.ClientIP(r.Context()))
	switch {
	case err == nil:
		server.WriteJSON(w, http.StatusOK, validateResponse{Valid: true})
	case errors.Is(err, service.ErrTokenNotFound):
		server.WriteJSON(w, http.StatusOK, validateResponse{Valid: false, Reason: "TokenNotFound"})
	case errors.Is(err, service.ErrTokenExpired):
		server.WriteJSON(w, http.StatusOK, validateResponse{Valid: false, Reason: "TokenExpired"})
	case errors.Is(err, service.ErrSessionMismatch):
		server.WriteJSON(w, http.StatusOK, validateResponse{Valid: false, Reason: "TokenSessionMismatch"})
	case errors.Is(err, service.ErrStoreUnavailable):
		server.WriteError(w, http.StatusServiceUnavailable, "token store unavailable")
	default:
		h.logger.Error("token validate failed", zap.Error(err))
		server.WriteError(w, http.StatusInternalServerError, "token validate failed")
	}
}

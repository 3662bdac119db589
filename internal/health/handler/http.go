// Package handler serves readiness checks for Kubernetes, load balancers,
// and CI.
package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"trustgate/internal/server"
)

// Pinger reports database connectivity.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker reports whether the geo policy compiles and evaluates.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// HTTP handles GET /healthz.
type HTTP struct {
	db     Pinger
	policy PolicyChecker
	logger *zap.Logger
}

// NewHTTP returns the health handler. Either dependency may be nil, in which
// case that check is skipped.
func NewHTTP(db Pinger, policy PolicyChecker, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{db: db, policy: policy, logger: logger}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Check runs the readiness probes and reports per-component status.
func (h *HTTP) Check(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			h.logger.Warn("database ping failed", zap.Error(err))
			checks["database"] = "unavailable"
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	if h.policy != nil {
		if err := h.policy.HealthCheck(r.Context()); err != nil {
			h.logger.Warn("policy check failed", zap.Error(err))
			checks["policy"] = "unavailable"
			healthy = false
		} else {
			checks["policy"] = "ok"
		}
	}

	status := http.StatusOK
	resp := healthResponse{Status: "ok", Checks: checks}
	if !healthy {
		status = http.StatusServiceUnavailable
		resp.Status = "degraded"
	}
	server.WriteJSON(w, status, resp)
}

// Package router mounts the HTTP handlers behind the shared middleware
// chain from internal/server.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	eventhandler "trustgate/internal/event/handler"
	georiskhandler "trustgate/internal/georisk/handler"
	healthhandler "trustgate/internal/health/handler"
	ratelimithandler "trustgate/internal/ratelimit/handler"
	"trustgate/internal/server"
	sessionhandler "trustgate/internal/session/handler"
	tokenhandler "trustgate/internal/token/handler"
	trusthandler "trustgate/internal/trust/handler"
)

// Deps holds the service dependencies for the HTTP handlers.
type Deps struct {
	// Tokens is the anti-forgery token service. Required.
	Tokens tokenhandler.Issuer
	// Limiter is the sliding-window rate limiter, shared by the token issue
	// path and the generic check endpoint. Required.
	Limiter ratelimithandler.Checker
	// Sessions is the session trust validator. Required.
	Sessions sessionhandler.Validator
	// Geo is the geo risk assessor. Required.
	Geo georiskhandler.Assessor
	// Trust is the trust elevation service. Required.
	Trust trusthandler.Elevator
	// Events records client-reported events. Required.
	Events eventhandler.Recorder
	// Optimizer runs event store maintenance passes. Required.
	Optimizer eventhandler.Maintainer
	// HealthPinger is probed by /healthz (e.g. *sql.DB). If nil the DB check
	// is skipped.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is probed by /healthz (the geo policy engine). If
	// nil the policy check is skipped.
	HealthPolicyChecker healthhandler.PolicyChecker
	// Verifier resolves bearer credentials into request identity. If nil all
	// requests are anonymous.
	Verifier server.BearerVerifier
	// Emitter receives per-request telemetry events. If nil emission is
	// disabled.
	Emitter server.Emitter
	// Logger is the request logger. If nil logging is disabled.
	Logger *zap.Logger
}

// NewRouter mounts every endpoint behind the shared middleware chain.
//
// Route → handler mapping:
//   - POST /v1/tokens             → internal/token/handler
//   - POST /v1/tokens/validate    → internal/token/handler
//   - POST /v1/ratelimit/check    → internal/ratelimit/handler
//   - POST /v1/sessions           → internal/session/handler
//   - POST /v1/sessions/validate  → internal/session/handler
//   - POST /v1/geo/assess         → internal/georisk/handler
//   - POST /v1/trust/elevate      → internal/trust/handler
//   - POST /v1/events             → internal/event/handler
//   - POST /v1/events/maintenance → internal/event/handler
//   - GET  /healthz               → internal/health/handler
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tokens := tokenhandler.NewHTTP(deps.Tokens, deps.Limiter, logger)
	limits := ratelimithandler.NewHTTP(deps.Limiter, logger)
	sessions := sessionhandler.NewHTTP(deps.Sessions, logger)
	geo := georiskhandler.NewHTTP(deps.Geo, logger)
	trust := trusthandler.NewHTTP(deps.Trust, logger)
	events := eventhandler.NewHTTP(deps.Events, deps.Optimizer, logger)
	health := healthhandler.NewHTTP(deps.HealthPinger, deps.HealthPolicyChecker, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(server.RealIP)
	r.Use(server.RequestLogger(logger))
	r.Use(server.Identity(deps.Verifier))

	r.Get("/healthz", health.Check)

	r.Route("/v1", func(r chi.Router) {
		r.Use(server.Telemetry(deps.Emitter, logger))
		r.Post("/tokens", tokens.Issue)
		r.Post("/tokens/validate", tokens.Validate)
		r.Post("/ratelimit/check", limits.Check)
		r.Post("/sessions", sessions.Start)
		r.Post("/sessions/validate", sessions.Validate)
		r.Post("/geo/assess", geo.Assess)
		r.Post("/trust/elevate", trust.Elevate)
		r.Post("/events", events.Ingest)
		r.Post("/events/maintenance", events.Maintenance)
	})
	return r
}

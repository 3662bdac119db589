package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	eventdomain "trustgate/internal/event/domain"
)

const bearerPrefix = "bearer "

// BearerVerifier validates a bearer credential and returns the identity it
// carries.
type BearerVerifier interface {
	Verify(token string) (userID, sessionID string, err error)
}

// Emitter forwards request telemetry downstream. Best-effort.
type Emitter interface {
	Emit(ctx context.Context, e *eventdomain.Event) error
}

// Identity resolves the optional bearer credential into request context.
// Every endpoint works without one; a credential that fails verification is
// treated as absent so the per-user context simply stays empty.
func Identity(verifier BearerVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token != "" && verifier != nil {
				if userID, sessionID, err := verifier.Verify(token); err == nil {
					r = r.WithContext(WithIdentity(r.Context(), userID, sessionID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RealIP resolves the client address into request context, preferring proxy
// headers over the socket peer.
func RealIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), clientIP(r))))
	})
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("ip", ClientIP(r.Context())))
		})
	}
}

// Telemetry emits one downstream event per request. Best-effort, off the
// request goroutine. A nil emitter disables emission.
func Telemetry(emitter Emitter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if emitter == nil {
				return
			}
			userID, _ := UserID(r.Context())
			sessionID, _ := SessionID(r.Context())
			e := &eventdomain.Event{
				Type:      "http_request",
				Severity:  eventdomain.SeverityInfo,
				Source:    r.Method + " " + r.URL.Path,
				ActorID:   userID,
				SessionID: sessionID,
				IPAddress: ClientIP(r.Context()),
				CreatedAt: start.UTC(),
			}
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := emitter.Emit(ctx, e); err != nil {
					logger.Warn("request telemetry emit failed", zap.Error(err))
				}
			}()
		})
	}
}

func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trustgate/internal/event"
	eventdomain "trustgate/internal/event/domain"
	geodomain "trustgate/internal/georisk/domain"
	"trustgate/internal/ratelimit"
	sessiondomain "trustgate/internal/session/domain"
	tokendomain "trustgate/internal/token/domain"
	tokenservice "trustgate/internal/token/service"
	trustservice "trustgate/internal/trust/service"
)

type routerFakes struct{}

func (routerFakes) Issue(context.Context, tokenservice.IssueParams) (*tokenservice.IssueResult, error) {
	return &tokenservice.IssueResult{
		Token:         "tok",
		ExpiresAt:     time.Now().Add(time.Hour),
		SecurityLevel: tokendomain.LevelStandard,
	}, nil
}

func (routerFakes) Validate(context.Context, string, string, string) error { return nil }

func (routerFakes) CheckAndRecord(context.Context, string, string, string, ratelimit.Policy) *ratelimit.Decision {
	return &ratelimit.Decision{Allowed: true, Attempts: 1, MaxAttempts: 100, ResetTime: time.Now()}
}

type routerSessions struct{}

func (routerSessions) Validate(context.Context, string, string, string) *sessiondomain.Verdict {
	return &sessiondomain.Verdict{Valid: true, SecurityLevel: sessiondomain.LevelStandard}
}

func (routerSessions) Start(context.Context, string, string, string) (*sessiondomain.Session, error) {
	return &sessiondomain.Session{ID: "sess-1", ExpiresAt: time.Now().Add(12 * time.Hour)}, nil
}

type routerGeo struct{}

func (routerGeo) Assess(_ context.Context, ip, _ string) (*geodomain.Assessment, error) {
	return &geodomain.Assessment{IP: ip, Tier: geodomain.TierNeutral, Allowed: true}, nil
}

type routerTrust struct{}

func (routerTrust) Elevate(context.Context, string, int, trustservice.Level, string, string) (*trustservice.Result, error) {
	return &trustservice.Result{Success: true, NewScore: 80, Method: trustservice.MethodScoreBoost}, nil
}

type routerEvents struct{}

func (routerEvents) Record(context.Context, *eventdomain.Event) error { return nil }

func (routerEvents) Run(context.Context) (event.Report, error) { return event.Report{}, nil }

func testRouter() http.Handler {
	f := routerFakes{}
	return NewRouter(Deps{
		Tokens:    f,
		Limiter:   f,
		Sessions:  routerSessions{},
		Geo:       routerGeo{},
		Trust:     routerTrust{},
		Events:    routerEvents{},
		Optimizer: routerEvents{},
	})
}

func TestRouterRoutes(t *testing.T) {
	r := testRouter()
	cases := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/v1/tokens", `{"sessionId":"s","timestamp":1}`},
		{http.MethodPost, "/v1/tokens/validate", `{"token":"tok"}`},
		{http.MethodPost, "/v1/ratelimit/check", `{"endpoint":"login"}`},
		{http.MethodPost, "/v1/sessions", `{"userId":"u","deviceFingerprint":"fp"}`},
		{http.MethodPost, "/v1/sessions/validate", `{"userId":"u","deviceFingerprint":"fp"}`},
		{http.MethodPost, "/v1/geo/assess", `{"ip":"203.0.113.1"}`},
		{http.MethodPost, "/v1/trust/elevate", `{"userId":"u","currentScore":60,"requiredLevel":"normal"}`},
		{http.MethodPost, "/v1/events", `{"message":"m"}`},
		{http.MethodPost, "/v1/events/maintenance", `{}`},
		{http.MethodGet, "/healthz", ""},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, bytes.NewReader([]byte(tc.body)))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200, body %s", w.Code, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %q", ct)
			}
		})
	}
}

func TestRouterPropagatesClientIP(t *testing.T) {
	r := testRouter()
	req := httptest.NewRequest(http.MethodPost, "/v1/geo/assess", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Forwarded-For", "203.0.113.77")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["ip"] != "203.0.113.77" {
		t.Errorf("ip = %v, want forwarded address", resp["ip"])
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	r := testRouter()
	req := httptest.NewRequest(http.MethodGet, "/v1/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

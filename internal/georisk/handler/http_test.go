package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"trustgate/internal/georisk/domain"
	"trustgate/internal/georisk/service"
	"trustgate/internal/server"
)

type stubAssessor struct {
	assessment domain.Assessment
	err        error

	gotIP    string
	gotActor string
}

func (s *stubAssessor) Assess(_ context.Context, ip, actorID string) (*domain.Assessment, error) {
	s.gotIP = ip
	s.gotActor = actorID
	if s.err != nil {
		return nil, s.err
	}
	a := s.assessment
	return &a, nil
}

func doAssess(t *testing.T, h *HTTP, ctx context.Context, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/geo/assess", bytes.NewReader(raw))
	if ctx != nil {
		req = req.WithContext(ctx)
	}
	w := httptest.NewRecorder()
	h.Assess(w, req)
	return w
}

func TestAssessReturnsAssessment(t *testing.T) {
	svc := &stubAssessor{assessment: domain.Assessment{
		IP:          "203.0.113.5",
		Country:     "KP",
		Tier:        domain.TierBlocked,
		RiskScore:   100,
		ThreatLevel: domain.ThreatCritical,
		Allowed:     false,
	}}
	h := NewHTTP(svc, nil)

	w := doAssess(t, h, context.Background(), map[string]any{"ip": "203.0.113.5"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even when denied", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["allowed"] != false || resp["riskScore"] != float64(100) {
		t.Errorf("response = %v", resp)
	}
	if resp["threatLevel"] != "critical" || resp["tier"] != "blocked" {
		t.Errorf("response = %v", resp)
	}
}

func TestAssessDefaultsToCallerAddress(t *testing.T) {
	svc := &stubAssessor{assessment: domain.Assessment{Allowed: true}}
	h := NewHTTP(svc, nil)

	ctx := server.WithClientIP(context.Background(), "198.51.100.7")
	ctx = server.WithIdentity(ctx, "user-3", "sess-3")
	doAssess(t, h, ctx, map[string]any{})
	if svc.gotIP != "198.51.100.7" {
		t.Errorf("ip = %q, want caller address", svc.gotIP)
	}
	if svc.gotActor != "user-3" {
		t.Errorf("actor = %q", svc.gotActor)
	}
}

func TestAssessInvalidIP(t *testing.T) {
	h := NewHTTP(&stubAssessor{err: service.ErrInvalidIP}, nil)
	w := doAssess(t, h, context.Background(), map[string]any{"ip": "not-an-ip"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

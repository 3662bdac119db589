package rotator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	tokenservice "trustgate/internal/token/service"
)

type stubIssuer struct {
	mu    sync.Mutex
	calls int
	err   error
	nowF  func() time.Time
}

func (s *stubIssuer) Issue(ctx context.Context, p tokenservice.IssueParams) (*tokenservice.IssueResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &tokenservice.IssueResult{
		Token:     fmt.Sprintf("tok-%d", s.calls),
		ExpiresAt: s.nowF().Add(30 * time.Minute),
	}, nil
}

func (s *stubIssuer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestTokenRotatesReactivelyOnExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := &stubIssuer{nowF: func() time.Time { return now }}
	r := New(issuer, "s1", "ua", time.Hour, zap.NewNop())
	r.nowF = func() time.Time { return now }

	first := r.Token(context.Background())
	if first.Token == "" || first.Fallback {
		t.Fatalf("first token = %+v", first)
	}
	if issuer.callCount() != 1 {
		t.Fatalf("calls = %d", issuer.callCount())
	}

	// Still fresh: no re-issue.
	_ = r.Token(context.Background())
	if issuer.callCount() != 1 {
		t.Fatalf("fresh token should not re-issue, calls = %d", issuer.callCount())
	}

	// Past expiry: reactive rotation.
	now = now.Add(31 * time.Minute)
	second := r.Token(context.Background())
	if issuer.callCount() != 2 {
		t.Fatalf("expired token should re-issue, calls = %d", issuer.callCount())
	}
	if second.Token == first.Token {
		t.Error("rotation should produce a new token")
	}
}

func TestFallbackPseudoTokenOnFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := &stubIssuer{nowF: func() time.Time { return now }, err: errors.New("store down")}
	r := New(issuer, "s1", "ua", time.Hour, zap.NewNop())
	r.nowF = func() time.Time { return now }

	cur := r.Token(context.Background())
	if !cur.Fallback {
		t.Fatal("failed issue should yield a fallback pseudo-token")
	}
	if !strings.HasPrefix(cur.Token, "fallback-") {
		t.Errorf("token = %q", cur.Token)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	now := time.Now().UTC()
	issuer := &stubIssuer{nowF: func() time.Time { return now }}
	r := New(issuer, "s1", "ua", 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if issuer.callCount() < 2 {
		t.Errorf("expected interval rotations, calls = %d", issuer.callCount())
	}
}
